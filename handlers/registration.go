// handlers/registration.go
package handlers

import (
	"conference-portal/middleware"
	"conference-portal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupRegistrationRoutes(app *fiber.App, registrations *services.RegistrationService, settings *services.SettingsService, logger *zap.Logger) {
	// Public: the registration form and settings it depends on.
	app.Get("/settings", settings.GetSettings)
	app.Post("/registrations", registrations.Register)
	app.Get("/registrations/:id/ticket.png", registrations.GetTicketQR)

	admin := app.Group("/admin",
		middleware.UserContextMiddleware(logger),
		middleware.RequireRoles(middleware.RoleAdmin))

	admin.Get("/registrations", registrations.ListRegistrations)
	admin.Get("/registrations/stats", registrations.GetRegistrationStats)
	admin.Get("/registrations/:id", registrations.GetRegistration)
	admin.Patch("/registrations/:id/status", registrations.UpdateRegistrationStatus)
	admin.Delete("/registrations/:id", registrations.DeleteRegistration)

	admin.Get("/settings", settings.GetSettings)
	admin.Put("/settings", settings.UpdateSettings)
}
