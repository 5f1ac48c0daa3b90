package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"svgdeck/internal/logging"
	"svgdeck/internal/observability"
)

// observabilityMiddleware wraps each request in a span and logs its latency.
func observabilityMiddleware(tracer *observability.TracerProvider, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := tracer.StartSpan(c.Request.Context(), observability.SpanHTTP,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last
		}
		observability.EndSpan(span, err)
		logger.Info("route=%s method=%s status=%d latency_ms=%.2f bytes=%d",
			c.FullPath(),
			c.Request.Method,
			status,
			float64(time.Since(start).Microseconds())/1000.0,
			c.Writer.Size(),
		)
	}
}
