// handlers/ops.go
package handlers

import (
	"conference-portal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// SetupOpsRoutes mounts health and metrics endpoints. Call it before the
// gateway middleware so scrapers and health checks reach them directly.
func SetupOpsRoutes(app *fiber.App, m *metrics.Metrics) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}
}
