package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// quietPaths are polled by renderers and scrapers and logged at debug level
var quietPaths = map[string]bool{
	"/metrics":       true,
	"/health":        true,
	"/api/transform": true,
	"/api/stats":     true,
}

// LoggingMiddleware logs HTTP requests. WebSocket sessions are logged by their hub.
func LoggingMiddleware(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		path := c.Path()
		if c.Response().StatusCode() == fiber.StatusSwitchingProtocols {
			return err
		}

		level := slog.LevelInfo
		if quietPaths[path] {
			level = slog.LevelDebug
		}

		logger.Log(c.UserContext(), level, "http request",
			"method", c.Method(),
			"path", path,
			"status", c.Response().StatusCode(),
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)

		return err
	}
}
