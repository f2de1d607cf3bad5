package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// endpoint, unless the handler already set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// GET only
		if c.Method() != fiber.MethodGet {
			return err
		}
		// Handler's own header wins
		if existing := c.Get(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Short for health checks

		case path == "/metrics":
			ttl = "no-cache" // Scraped live

		// The view moves with every pan and position fix.
		case strings.HasSuffix(path, ".png"),
			strings.HasPrefix(path, "/v1/view"),
			strings.HasPrefix(path, "/v1/route"),
			strings.HasPrefix(path, "/v1/position"):
			ttl = "no-cache"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600" // Static per build

		case strings.HasPrefix(path, "/v1/"):
			ttl = "private, max-age=0"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
