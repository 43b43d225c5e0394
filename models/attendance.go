package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CheckInMethod string

const (
	MethodScan   CheckInMethod = "scan"
	MethodManual CheckInMethod = "manual"
)

func (m CheckInMethod) Valid() bool {
	return m == MethodScan || m == MethodManual
}

// AttendanceRecord proves a confirmed registrant checked in. The unique index
// on RegistrationID makes a second record for the same registration
// impossible at the store level.
type AttendanceRecord struct {
	ID             string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RegistrationID string             `json:"registration_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	TicketCode     string             `json:"ticket_code"`
	Timestamp      time.Time          `json:"timestamp" gorm:"not null;index"`
	Method         CheckInMethod      `json:"method" gorm:"type:varchar(8);not null"`
	ScannedBy      string             `json:"scanned_by"`
	AttendeeName   string             `json:"attendee_name"`
	AttendeeEmail  string             `json:"attendee_email"`
	Status         RegistrationStatus `json:"status" gorm:"type:varchar(16)"` // registration status at check-in
}

func (AttendanceRecord) TableName() string { return "attendance" }

func (a *AttendanceRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return nil
}

// CheckInResult is what the operator sees after a check-in attempt. Message is
// shown verbatim.
type CheckInResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Record  *AttendanceRecord `json:"record,omitempty"`
}

// AttendanceStats are counts derived from the full attendance list.
type AttendanceStats struct {
	Total    int64                        `json:"total"`
	ByMethod map[CheckInMethod]int64      `json:"by_method"`
	ByStatus map[RegistrationStatus]int64 `json:"by_status"`
}

// ActionResult is the structured outcome of an admin action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
