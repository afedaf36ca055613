// Package logging provides structured logging with OpenTelemetry integration.
//
// Logging wraps zap with:
//   - a custom Trace level (-2, below Debug)
//   - console (stderr) and OpenTelemetry outputs
//   - context field injection (trace_id, command, game)
//   - optional sampling below Error
//
// Create a logger from config:
//
//	logger, err := logging.NewLogger(cfg, global.GetLoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Library packages accept a plain *zap.Logger; pass logger.Underlying().
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	store, _ := patternstore.New(dir, patternstore.WithLogger(tl.Underlying()))
//	tl.AssertLogged(t, zapcore.WarnLevel, "corrupted")
package logging
