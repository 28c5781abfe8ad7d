// Package middleware provides HTTP middleware for the inventory ledger API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps request id header values copied into spans.
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns the default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "labstock-backend",
		Enabled:     true,
	}
}

// Tracing returns the tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin, which names server spans after the
// route pattern, and then tags the span with the request id and the
// actor the auth layer resolved. The enrichment runs after the handler
// chain so attributes set by inner middleware are visible.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return passthrough
	}

	otelMiddleware := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		otelMiddleware(c)

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}
	}
}

// enrichSpan copies request id and actor identity onto the span. Actor
// values come from the actor middleware, a trusted source; raw identity
// headers are never copied into spans.
func enrichSpan(c *gin.Context, span trace.Span) {
	if requestID := traceRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if actor := c.GetString(ActorNameKey); actor != "" {
		span.SetAttributes(attribute.String("actor", actor))
	}
	if role := c.GetString(ActorRoleKey); role != "" {
		span.SetAttributes(attribute.String("actor_role", role))
	}
}

// traceRequestID prefers the id the RequestID middleware stored, falling
// back to the raw header truncated to MaxRequestIDLength.
func traceRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// SpanErrorMarker marks the active span failed on 4xx and 5xx responses.
// Place it after the Tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		span.SetStatus(codes.Error, statusDescription(statusCode))
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}

func statusDescription(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return "Internal Server Error"
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusNotFound,
		statusCode == http.StatusConflict:
		return http.StatusText(statusCode)
	default:
		return "Client Error"
	}
}
