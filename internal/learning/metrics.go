package learning

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/buildscout/internal/learning"

// Learn outcomes recorded on buildscout.learn.total.
const (
	outcomeCreated = "created"
	outcomeMerged  = "merged"
	outcomeFailed  = "failed"
)

// Metrics holds the learning service instruments.
type Metrics struct {
	learnTotal metric.Int64Counter
	editTotal  metric.Int64Counter
}

// NewMetrics creates the instruments on meter. A nil meter uses the global
// provider. Instruments that fail to register are logged and skipped.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{}
	var err error

	m.learnTotal, err = meter.Int64Counter(
		"buildscout.learn.total",
		metric.WithDescription("Learn calls labeled by outcome (created, merged, failed)"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create learn counter", zap.Error(err))
	}

	m.editTotal, err = meter.Int64Counter(
		"buildscout.edit.total",
		metric.WithDescription("Edit calls labeled by result (success, not_found, error)"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("failed to create edit counter", zap.Error(err))
	}

	return m
}

func (m *Metrics) recordLearn(ctx context.Context, outcome, raceLabel string) {
	if m == nil || m.learnTotal == nil {
		return
	}
	m.learnTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("race", raceLabel),
	))
}

func (m *Metrics) recordEdit(ctx context.Context, result string) {
	if m == nil || m.editTotal == nil {
		return
	}
	m.editTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
