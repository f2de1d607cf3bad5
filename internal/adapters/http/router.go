package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/vehiclenav/internal/pkg/metrics"
)

// requestTimeout bounds handlers that wait on a service queue or render.
const requestTimeout = 5 * time.Second

// SetupRoutes registers the REST, GraphQL and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// PNGs are already compressed; this mostly helps route JSON.
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/view", GetViewHandler(deps))
	v1.Put("/view", PutViewHandler(deps))
	v1.Post("/view/pan/:dir", PanHandler(deps))
	v1.Post("/view/zoom/:dir", ZoomHandler(deps))
	v1.Get("/map.png", MapImageHandler(deps))
	v1.Get("/frame.png", timeout.NewWithContext(FrameImageHandler(deps), requestTimeout))
	v1.Get("/route", GetRouteHandler(deps))
	v1.Post("/route/points", timeout.NewWithContext(AddRoutePointsHandler(deps), requestTimeout))
	v1.Get("/position", PositionHandler(deps))
	v1.Get("/services", ServicesHandler(deps))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
