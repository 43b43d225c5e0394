// middleware/sse_auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// StreamTokenFromQuery lets browser EventSource clients, which cannot set
// headers, pass the gateway token as ?token=. The token is moved into the
// Authorization header so GatewayAuthMiddleware checks it like any other
// request. Requests that already carry an Authorization header are left alone.
//
// Usage:
//
//	app.Use("/attendance/stream", middleware.StreamTokenFromQuery())
//	app.Use(middleware.GatewayAuthMiddleware(token, logger))
func StreamTokenFromQuery() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "" {
			return c.Next()
		}
		token := strings.TrimSpace(c.Query("token"))
		if token != "" {
			c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
			c.Request().URI().QueryArgs().Del("token")
		}
		return c.Next()
	}
}
