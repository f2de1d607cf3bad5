package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		})
	}
}

// ReadyHandler checks that both background services are running and the
// position feed is connected.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := make(map[string]string)
		allOK := true

		for _, s := range deps.Driver.Services() {
			switch {
			case s.Running:
				checks[s.Name] = "ok"
			case s.Error != "":
				checks[s.Name] = "stopped: " + s.Error
				allOK = false
			default:
				checks[s.Name] = "stopped: " + s.Reason
				allOK = false
			}
		}

		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		if _, ok := deps.Driver.Canvas(); ok {
			checks["canvas"] = "ok"
		} else {
			checks["canvas"] = "pending"
		}

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
