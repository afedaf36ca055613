package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestNewSampledCore(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled:    true,
		Tick:       time.Minute,
		Initial:    5,
		Thereafter: 0,
	})
	logger := &Logger{zap: zap.New(sampled), config: NewDefaultConfig()}
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		logger.Info(ctx, "skipped malformed entry")
		logger.Error(ctx, "save failed")
	}

	assert.Equal(t, 5, observed.FilterMessage("skipped malformed entry").Len())
	assert.Equal(t, 50, observed.FilterMessage("save failed").Len(), "errors are never sampled")
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelFilterCore{Core: core, maxLevel: zapcore.WarnLevel, hasMax: true}

	child := filtered.With([]zapcore.Field{zap.String("k", "v")})
	assert.True(t, child.Enabled(zapcore.WarnLevel))
	assert.False(t, child.Enabled(zapcore.ErrorLevel))

	zap.New(child).Error("dropped")
	zap.New(child).Warn("kept")
	assert.Equal(t, 1, observed.Len())
}
