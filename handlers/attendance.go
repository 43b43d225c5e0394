// handlers/attendance.go
package handlers

import (
	"conference-portal/middleware"
	"conference-portal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupAttendanceRoutes mounts the check-in desk. Staff and admins may
// check people in and read the list; only admins delete records.
func SetupAttendanceRoutes(app *fiber.App, attendance *services.AttendanceService, logger *zap.Logger) {
	desk := app.Group("/attendance",
		middleware.UserContextMiddleware(logger),
		middleware.RequireRoles(middleware.RoleStaff, middleware.RoleAdmin))

	desk.Post("/check-in", attendance.CheckIn)
	desk.Post("/check-in/image", attendance.CheckInImage)
	desk.Get("/", attendance.ListAttendance)
	desk.Get("/stats", attendance.GetAttendanceStats)
	desk.Get("/stream", attendance.StreamAttendance)
	desk.Delete("/:id", middleware.RequireRoles(middleware.RoleAdmin), attendance.DeleteAttendance)
}
