package telemetry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Endpoint = "" }, ""},
		{"valid local grpc", func(c *Config) { c.Enabled = true }, ""},
		{"valid local http with scheme", func(c *Config) {
			c.Enabled = true
			c.Protocol = ProtocolHTTP
			c.Endpoint = "http://127.0.0.1:4318"
		}, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"unknown protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, "insecure connections"},
		{"secure remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}, ""},
		{"sampling out of range", func(c *Config) { c.Enabled = true; c.SamplingRate = 1.5 }, "sampling_rate"},
		{"zero export interval", func(c *Config) { c.Enabled = true; c.Metrics.ExportInterval = 0 }, "export_interval"},
		{"zero shutdown timeout", func(c *Config) { c.Enabled = true; c.ShutdownTimeout = 0 }, "shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	assert.True(t, isLocalEndpoint("localhost:4317"))
	assert.True(t, isLocalEndpoint("127.0.0.2:4317"))
	assert.True(t, isLocalEndpoint("[::1]:4317"))
	assert.True(t, isLocalEndpoint("https://localhost:4318"))
	assert.False(t, isLocalEndpoint("10.0.0.5:4317"))
	assert.False(t, isLocalEndpoint("collector:4317"))
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	require.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_WithInMemoryExporters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics.ExportInterval = time.Hour

	spans := tracetest.NewInMemoryExporter()
	metrics := &recordingExporter{}
	tel, err := New(context.Background(), cfg, nil,
		WithTraceExporter(spans),
		WithMetricExporter(metrics))
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())

	ctx, span := tel.Tracer("test").Start(context.Background(), "buildscout.match")
	span.End()

	counter, err := tel.Meter("test").Int64Counter("buildscout.match.total")
	require.NoError(t, err)
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "matched")))

	require.NoError(t, tel.ForceFlush(context.Background()))
	require.Len(t, spans.GetSpans(), 1)
	assert.Equal(t, "buildscout.match", spans.GetSpans()[0].Name)
	assert.Positive(t, metrics.exports.Load())

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.IsEnabled()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})
	assert.Equal(t, HealthStatus{Healthy: false, Degraded: true}, tel.Health())
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "buildscout.learn")
	span.SetAttributes(attribute.String("race", "zerg"))
	span.End()

	tt.AssertSpanExists(t, "buildscout.learn")
	tt.AssertSpanAttribute(t, "buildscout.learn", "race", "zerg")

	counter, err := tt.Meter("test").Int64Counter("buildscout.learn.total")
	require.NoError(t, err)
	counter.Add(ctx, 2, metric.WithAttributes(attribute.String("outcome", "created")))
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "merged")))

	assert.Equal(t, int64(3), tt.CounterValue(t, "buildscout.learn.total"))
	assert.Equal(t, int64(2), tt.CounterValue(t, "buildscout.learn.total", attribute.String("outcome", "created")))
}

// recordingExporter counts exports instead of sending them.
type recordingExporter struct {
	exports atomic.Int64
}

func (e *recordingExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return cumulative(k)
}

func (e *recordingExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *recordingExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	e.exports.Add(1)
	return nil
}

func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) Shutdown(context.Context) error { return nil }
