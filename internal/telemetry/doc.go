// Package telemetry sets up OpenTelemetry tracing and metrics export.
//
// Spans and counters are exported over OTLP (gRPC or HTTP) to a collector.
// Export is off by default; commands still get working no-op tracers and
// meters.
//
//	tel, err := telemetry.New(ctx, cfg.Telemetry, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer("buildscout").Start(ctx, "buildscout.match")
//	defer span.End()
//
// Configuration:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sampling_rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: 15s
//
// Tests use NewTestTelemetry, which records spans in memory and collects
// metrics through a manual reader.
package telemetry
