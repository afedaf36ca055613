package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `validate:"required"`
	Ratio float64 `validate:"gte=0,lte=1"`
	Mode  string  `validate:"oneof=json console"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&sample{Name: "x", Ratio: 0.5, Mode: "json"}))
}

func TestStruct_Invalid(t *testing.T) {
	err := Struct(&sample{Ratio: 2, Mode: "xml"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)
	assert.Contains(t, err.Error(), "sample.Name is required")
	assert.Contains(t, err.Error(), "sample.Ratio must be less than or equal to 1")
	assert.Contains(t, err.Error(), "sample.Mode must be one of: json console")
}

func TestGet_Singleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
