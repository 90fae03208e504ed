package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// LoggingMiddleware writes one access line per request, leveled by status.
func LoggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := zerolog.InfoLevel
		switch {
		case status >= 500:
			level = zerolog.ErrorLevel
		case status >= 400:
			level = zerolog.WarnLevel
		}

		event := logger.WithLevel(level).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path). // no query: admin filters carry user ids
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(began)).
			Str("client_ip", c.ClientIP())

		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			event = event.Stringer("trace_id", sc.TraceID()).Stringer("span_id", sc.SpanID())
		}
		if id := RequestIDFromContext(c); id != "" {
			event = event.Str("request_id", id)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			event = event.Str("error", errs.String())
		}
		event.Msg("http request")
	}
}
