package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("secret", nil))
	app.Get("/public", func(c *fiber.Ctx) error { return c.SendString("ok") })

	secured := app.Group("/admin", UserContextMiddleware(nil), RequireRoles(RoleAdmin))
	secured.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(LocalUserID).(string))
	})
	return app
}

func TestGatewayAuth(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: fiber.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", want: fiber.StatusUnauthorized},
		{name: "bearer", header: "Bearer secret", want: fiber.StatusOK},
		{name: "raw", header: "secret", want: fiber.StatusOK},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/public", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestGatewayAuthRejectsEverythingWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("", nil))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUserContextAndRoles(t *testing.T) {
	tests := []struct {
		name  string
		user  string
		roles string
		want  int
	}{
		{name: "no user", user: "", roles: "admin", want: fiber.StatusUnauthorized},
		{name: "staff only", user: "u1", roles: "staff", want: fiber.StatusForbidden},
		{name: "admin", user: "u1", roles: "staff, Admin", want: fiber.StatusOK},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/whoami", nil)
			req.Header.Set("Authorization", "Bearer secret")
			req.Header.Set("X-User-ID", tt.user)
			req.Header.Set("X-User-Roles", tt.roles)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)

			if tt.want == fiber.StatusOK {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, "u1", string(body))
			}
		})
	}
}

func TestStreamTokenFromQuery(t *testing.T) {
	app := fiber.New()
	app.Use("/stream", StreamTokenFromQuery())
	app.Use(GatewayAuthMiddleware("secret", nil))
	app.Get("/stream", func(c *fiber.Ctx) error { return c.SendString(c.Query("token")) })
	app.Get("/other", func(c *fiber.Ctx) error { return c.SendString("ok") })

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "query token", target: "/stream?token=secret", want: fiber.StatusOK},
		{name: "wrong query token", target: "/stream?token=nope", want: fiber.StatusUnauthorized},
		{name: "header wins", target: "/stream?token=secret", header: "Bearer nope", want: fiber.StatusUnauthorized},
		{name: "only on stream", target: "/other?token=secret", want: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)

			if tt.want == fiber.StatusOK {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Empty(t, string(body), "token is not passed on to handlers")
			}
		})
	}
}
