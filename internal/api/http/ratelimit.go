package http

import (
	"context"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bookshelf-labs/library-service/internal/config"
	apperrors "github.com/bookshelf-labs/library-service/pkg/util/errorutil"
)

// WindowCounter counts hits per key in fixed windows.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit throttles a route per client IP. Counter errors let the request through.
func RateLimit(cfg config.RateLimitConfig, counter WindowCounter, logger *zap.Logger) fiber.Handler {
	if !cfg.Enabled || counter == nil || cfg.Limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	window := cfg.Window()

	return func(c *fiber.Ctx) error {
		key := cfg.Prefix + ":" + c.IP() + ":" + bucketPath(c)
		count, resetIn, err := counter.Hit(c.UserContext(), key, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			return c.Next()
		}

		remaining := int64(cfg.Limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.Limit) {
			secs := int(math.Ceil(resetIn.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return apperrors.NewTooManyRequests(secs)
		}
		return c.Next()
	}
}

// bucketPath names the bucket by the matched route so that case and
// trailing-slash variants of one endpoint share a counter.
func bucketPath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
		return route.Path
	}
	return strings.ToLower(path.Clean("/" + c.Path()))
}
