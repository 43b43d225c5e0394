package services

import (
	"context"

	"conference-portal/feed"
)

// RegisterFeeds makes the three store collections subscribable on hub.
// Registrations are delivered without a status filter; subscribers narrow
// them with a feed.Filter.
func RegisterFeeds(hub *feed.Hub, attendance *AttendanceService, registrations *RegistrationService, settings *SettingsService) {
	if attendance != nil {
		hub.Register(CollectionAttendance, func(ctx context.Context) (any, error) {
			return attendance.List(ctx)
		})
	}
	if registrations != nil {
		hub.Register(CollectionRegistrations, func(ctx context.Context) (any, error) {
			return registrations.List(ctx, "")
		})
	}
	if settings != nil {
		hub.Register(CollectionSettings, func(ctx context.Context) (any, error) {
			return settings.Load(ctx)
		})
	}
}
