package logging

import (
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

const otelScope = "github.com/fyrsmithlabs/buildscout"

// newDualCore creates a core with console and/or OTEL outputs.
func newDualCore(cfg *Config, otelProvider log.LoggerProvider, console zapcore.WriteSyncer) (zapcore.Core, error) {
	level, err := cfg.ZapLevel()
	if err != nil {
		return nil, err
	}
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Console {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), console, level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(otelProvider)))
	}

	if len(cores) == 0 {
		return nil, fmt.Errorf("at least one output must be enabled and available")
	}

	var core zapcore.Core
	if len(cores) == 1 {
		core = cores[0]
	} else {
		core = zapcore.NewTee(cores...)
	}

	return newSampledCore(core, cfg.Sampling), nil
}
