package models

import "time"

type EventStatus string

const (
	EventUpcoming EventStatus = "upcoming"
	EventOngoing  EventStatus = "ongoing"
	EventEnded    EventStatus = "ended"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventUpcoming, EventOngoing, EventEnded:
		return true
	}
	return false
}

const (
	// SettingsCollection and GeneralSettingsID together name the single
	// settings/general document.
	SettingsCollection = "settings"
	GeneralSettingsID  = "general"
)

// Settings is the shared settings/general document.
type Settings struct {
	ID                   string      `json:"-" gorm:"primaryKey;type:varchar(32)"`
	EventStatus          EventStatus `json:"event_status" gorm:"type:varchar(16);default:'upcoming'"`
	RegistrationOpen     bool        `json:"registration_open"`
	RegistrationClosesAt *time.Time  `json:"registration_closes_at,omitempty"`
	UpdatedBy            string      `json:"updated_by,omitempty"`
	UpdatedAt            time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Settings) TableName() string { return "settings" }

// DefaultSettings is used until an admin saves settings for the first time.
func DefaultSettings() Settings {
	return Settings{
		ID:               GeneralSettingsID,
		EventStatus:      EventUpcoming,
		RegistrationOpen: true,
	}
}

// AcceptingRegistrations reports whether new registrations may be created at now.
func (s Settings) AcceptingRegistrations(now time.Time) bool {
	if !s.RegistrationOpen || s.EventStatus == EventEnded {
		return false
	}
	if s.RegistrationClosesAt != nil && !now.Before(*s.RegistrationClosesAt) {
		return false
	}
	return true
}
