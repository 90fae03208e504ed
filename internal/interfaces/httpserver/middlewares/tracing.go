package middlewares

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens one server span per request. Webhook deliveries are
// tagged so LINE traffic can be told apart from admin calls.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		req := c.Request
		route := c.FullPath()
		spanName := req.Method + " " + route
		if route == "" {
			spanName = req.Method + " unmatched"
		}

		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(req.Method),
			semconv.HTTPRoute(route),
			semconv.HTTPTarget(req.URL.Path),
		}
		if req.Header.Get(lineSignatureHeader) != "" {
			attrs = append(attrs, attribute.Bool("line.signed", true))
		}

		parent := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
		ctx, span := tracer.Start(parent, spanName, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(attrs...))
		defer span.End()

		if id := RequestIDFromContext(c); id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}
		c.Request = req.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if status < 500 {
			return
		}
		span.SetStatus(codes.Error, "server error")
		for _, ginErr := range c.Errors {
			span.RecordError(ginErr.Err)
		}
	}
}

const lineSignatureHeader = "X-Line-Signature"
