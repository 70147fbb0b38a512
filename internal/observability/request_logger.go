package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bookshelf-labs/library-service/internal/auth"
)

// RequestLogger logs one line per request and feeds the metrics counters.
// It must be registered before the error handler so the rendered status is visible.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		route := c.Route().Path
		principal, authenticated := auth.PrincipalFromContext(c)

		metrics.RecordRequest(route, c.Method(), status, elapsed, authenticated)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", elapsed),
			zap.String("ip", c.IP()),
		}
		if authenticated {
			fields = append(fields, zap.String("subject", principal.Subject), zap.String("role", string(principal.Role)))
		}
		if status >= fiber.StatusInternalServerError {
			logger.Warn("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
		return err
	}
}
