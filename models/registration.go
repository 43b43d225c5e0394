package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationRejected  RegistrationStatus = "rejected"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationConfirmed, RegistrationRejected:
		return true
	}
	return false
}

// Registration is a person's request to attend. Only confirmed registrations
// may check in.
type Registration struct {
	ID           string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TicketCode   string             `json:"ticket_code" gorm:"index"` // QR payload; falls back to ID when empty
	Status       RegistrationStatus `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	FirstName    string             `json:"first_name" gorm:"not null"`
	MiddleName   string             `json:"middle_name"`
	LastName     string             `json:"last_name" gorm:"not null"`
	Email        string             `json:"email" gorm:"uniqueIndex;not null"`
	Organization string             `json:"organization,omitempty"`
	Phone        string             `json:"phone,omitempty"`
	TicketQRURL  string             `json:"ticket_qr_url,omitempty"`
	ReviewedBy   string             `json:"reviewed_by,omitempty"`

	Timestamps
}

// TableName keeps the collection name used by the rest of the system.
func (Registration) TableName() string { return "registrations" }

func (r *Registration) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = RegistrationPending
	}
	return nil
}

// LookupCode is the code printed on the ticket: the ticket code when set, the
// raw id otherwise.
func (r *Registration) LookupCode() string {
	if r.TicketCode != "" {
		return r.TicketCode
	}
	return r.ID
}

// DisplayName joins first name, middle initial and last name with single
// spaces, skipping empty parts: "Juan D. Cruz", "Juan Cruz".
func (r *Registration) DisplayName() string {
	parts := make([]string, 0, 3)
	if first := strings.TrimSpace(r.FirstName); first != "" {
		parts = append(parts, first)
	}
	if middle := strings.TrimSpace(r.MiddleName); middle != "" {
		initial := []rune(middle)[0]
		parts = append(parts, string(initial)+".")
	}
	if last := strings.TrimSpace(r.LastName); last != "" {
		parts = append(parts, last)
	}
	return strings.Join(parts, " ")
}

// RegistrationStats summarises registrations for the admin console.
type RegistrationStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Rejected  int64 `json:"rejected"`
	CheckedIn int64 `json:"checked_in"`
}
