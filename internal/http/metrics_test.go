package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectRequests(t *testing.T, reader *sdkmetric.ManualReader) []metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "buildscout.http.requests_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			return sum.DataPoints
		}
	}
	return nil
}

func TestMetricsMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics := newHTTPMetrics(provider.Meter("test"), nil)

	e := echo.New()
	e.Use(metrics.MetricsMiddleware())
	e.GET("/api/v1/patterns/:id", func(c echo.Context) error {
		if c.Param("id") == "pattern_001" {
			return c.String(http.StatusOK, "ok")
		}
		return echo.NewHTTPError(http.StatusNotFound, "pattern not found")
	})

	for _, path := range []string{"/api/v1/patterns/pattern_001", "/api/v1/patterns/pattern_002"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if path == "/api/v1/patterns/pattern_002" {
			assert.Equal(t, http.StatusNotFound, rec.Code)
		}
	}

	points := collectRequests(t, reader)
	require.Len(t, points, 2)

	byStatus := map[int64]int64{}
	for _, dp := range points {
		endpoint, ok := dp.Attributes.Value(attribute.Key("endpoint"))
		require.True(t, ok)
		assert.Equal(t, "/api/v1/patterns/:id", endpoint.AsString())

		status, ok := dp.Attributes.Value(attribute.Key("status"))
		require.True(t, ok)
		byStatus[status.AsInt64()] += dp.Value
	}
	assert.Equal(t, map[int64]int64{200: 1, 404: 1}, byStatus)
}

func TestNewHTTPMetrics_NilLoggerAndMeter(t *testing.T) {
	m := NewHTTPMetrics(nil)
	require.NotNil(t, m)
	assert.NotNil(t, m.logger)
	assert.NotNil(t, m.requestsTotal)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "unmatched", normalizePath(""))
	assert.Equal(t, "/api/v1/match", normalizePath("/api/v1/match"))
	assert.Equal(t, "/api/v1/patterns/:id", normalizePath("/api/v1/patterns/:id"))
}
