package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type commandCtxKey struct{}
type gameCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from ctx: the active trace, the
// CLI command and the game being processed.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if cmd := CommandFromContext(ctx); cmd != "" {
		fields = append(fields, zap.String("command", cmd))
	}
	if game := GameFromContext(ctx); game != "" {
		fields = append(fields, zap.String("game", game))
	}
	return fields
}

// WithCommand records the running command name.
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, commandCtxKey{}, name)
}

// CommandFromContext returns the command name, or "".
func CommandFromContext(ctx context.Context) string {
	s, _ := ctx.Value(commandCtxKey{}).(string)
	return s
}

// WithGame records the lookup key ("opponent@date") of the game being
// processed.
func WithGame(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, gameCtxKey{}, key)
}

// GameFromContext returns the game lookup key, or "".
func GameFromContext(ctx context.Context) string {
	s, _ := ctx.Value(gameCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from context, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
