// Context propagation for request-scoped loggers. The HTTP middleware
// attaches the request id and resolved actor here; repositories and
// services pull them back out so every log line and audit write can be
// correlated with the request that caused it.
package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	actorKey     contextKey = "actor"
	actorRoleKey contextKey = "actor_role"
)

// WithContext attaches the logger to the context.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger attached to the context, or a no-op
// logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request id in the context and returns the
// context and logger enriched with it. Trace ids ride along when an
// active span is present.
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	fields := append(traceFields(ctx), zap.String("request_id", requestID))
	enriched := logger.With(fields...)
	return WithContext(ctx, enriched), enriched
}

// WithActor stores the acting party in the context and returns the
// context and logger enriched with actor and actor_role.
func WithActor(ctx context.Context, logger *zap.Logger, actor, role string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, actorKey, actor)
	ctx = context.WithValue(ctx, actorRoleKey, role)
	enriched := logger.With(
		zap.String("actor", actor),
		zap.String("actor_role", role),
	)
	return WithContext(ctx, enriched), enriched
}

// GetRequestID returns the request id stored in the context, or "".
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetActor returns the acting party's name stored in the context, or "".
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok {
		return actor
	}
	return ""
}

// GetActorRole returns the acting party's role stored in the context, or "".
func GetActorRole(ctx context.Context) string {
	if role, ok := ctx.Value(actorRoleKey).(string); ok {
		return role
	}
	return ""
}

// traceFields returns trace_id and span_id fields for the active span,
// or nil when the context carries no valid span.
func traceFields(ctx context.Context) []zap.Field {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	}
}
