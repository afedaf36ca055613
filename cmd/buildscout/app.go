package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/config"
	"github.com/fyrsmithlabs/buildscout/internal/logging"
	"github.com/fyrsmithlabs/buildscout/internal/services"
	"github.com/fyrsmithlabs/buildscout/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/buildscout/cmd/buildscout"

// app holds everything a command needs for one invocation.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	services  services.Registry
}

// newApp loads configuration, starts telemetry and logging, and builds the
// services. The returned context carries the command name, the logger and
// a span that Close ends.
func newApp(cmd *cobra.Command) (context.Context, *app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.Store.DataDir = dataDir
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tel, err := telemetry.New(ctx, &cfg.Telemetry, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg, err := services.Build(cfg, logger.Underlying(), tel.Meter(instrumentationName))
	if err != nil {
		_ = logger.Sync()
		_ = tel.Shutdown(context.Background())
		return nil, nil, err
	}

	ctx = logging.WithCommand(ctx, cmd.Name())
	ctx = logging.WithLogger(ctx, logger)
	ctx, _ = tel.Tracer(instrumentationName).Start(ctx, "buildscout."+cmd.Name())

	logger.Debug(ctx, "command started", zap.String("data_dir", cfg.Store.DataDir))

	return ctx, &app{cfg: cfg, logger: logger, telemetry: tel, services: reg}, nil
}

// Close ends the command span and releases services, flushing logs and
// telemetry.
func (a *app) Close(ctx context.Context) {
	trace.SpanFromContext(ctx).End()
	_ = a.services.Close()
	if err := a.telemetry.Shutdown(context.Background()); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
