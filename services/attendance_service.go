package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conference-portal/feed"
	"conference-portal/metrics"
	"conference-portal/models"
	"conference-portal/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	CollectionAttendance    = "attendance"
	CollectionRegistrations = "registrations"
)

const (
	msgNotFound      = "Registration not found. Check the ticket code and try again."
	msgInfraFailure  = "Failed to record attendance. Please try again."
	msgInvalidMethod = "Invalid check-in method. Use scan or manual."

	msgAttendanceNotFound = "Attendance record not found."
)

var ErrRegistrationNotFound = errors.New("registration not found")

type AttendanceService struct {
	DB      *gorm.DB
	Hub     *feed.Hub
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Now     func() time.Time

	// StreamContext bounds live SSE streams; cancelling it ends them all.
	// Nil leaves streams open until the client or the hub goes away.
	StreamContext context.Context
}

func NewAttendanceService(db *gorm.DB, hub *feed.Hub, m *metrics.Metrics, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{DB: db, Hub: hub, Metrics: m, Logger: logger, Now: time.Now}
}

// RecordAttendance checks in the registration identified by code. Every
// failure is reported in the result; nothing is written unless the whole
// check-in succeeds.
func (s *AttendanceService) RecordAttendance(ctx context.Context, code string, method models.CheckInMethod, operatorID string) models.CheckInResult {
	if !method.Valid() {
		return models.CheckInResult{Message: msgInvalidMethod}
	}

	reg, err := s.findRegistration(ctx, code)
	if errors.Is(err, ErrRegistrationNotFound) {
		s.Metrics.ObserveCheckIn(metrics.OutcomeNotFound, method)
		return models.CheckInResult{Message: msgNotFound}
	}
	if err != nil {
		return s.infraFailure("lookup registration", code, method, err)
	}

	if reg.Status != models.RegistrationConfirmed {
		s.Metrics.ObserveCheckIn(metrics.OutcomeIneligible, method)
		return models.CheckInResult{
			Message: fmt.Sprintf("Registration for %s is %s. Only confirmed registrations can check in.", reg.DisplayName(), reg.Status),
		}
	}

	var existing models.AttendanceRecord
	err = s.DB.WithContext(ctx).Where("registration_id = ?", reg.ID).First(&existing).Error
	if err == nil {
		return s.duplicate(&existing, method)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.infraFailure("check existing attendance", code, method, err)
	}

	record := models.AttendanceRecord{
		RegistrationID: reg.ID,
		TicketCode:     reg.LookupCode(),
		Timestamp:      s.Now().UTC(),
		Method:         method,
		ScannedBy:      operatorID,
		AttendeeName:   reg.DisplayName(),
		AttendeeEmail:  reg.Email,
		Status:         reg.Status,
	}

	// The unique index on registration_id settles concurrent check-ins: the
	// loser inserts nothing and reports the winner's record as a duplicate.
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "registration_id"}}, DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return s.infraFailure("write attendance", code, method, res.Error)
	}
	if res.RowsAffected == 0 {
		if err := s.DB.WithContext(ctx).Where("registration_id = ?", reg.ID).First(&existing).Error; err != nil {
			return s.infraFailure("reload conflicting attendance", code, method, err)
		}
		return s.duplicate(&existing, method)
	}

	s.Metrics.ObserveCheckIn(metrics.OutcomeSuccess, method)
	s.publish(feed.EventCreated, record.ID, record)
	s.Logger.Info("attendance recorded",
		zap.String("registration_id", reg.ID),
		zap.String("method", string(method)),
		zap.String("operator", operatorID))

	return models.CheckInResult{
		Success: true,
		Message: fmt.Sprintf("Welcome, %s! Attendance recorded.", record.AttendeeName),
		Record:  &record,
	}
}

// findRegistration resolves code by ticket code, then by raw id, then by the
// id segment of a ticket QR payload.
func (s *AttendanceService) findRegistration(ctx context.Context, code string) (*models.Registration, error) {
	if code == "" {
		return nil, ErrRegistrationNotFound
	}
	db := s.DB.WithContext(ctx)

	var byTicket []models.Registration
	if err := db.Where("ticket_code = ?", code).Limit(1).Find(&byTicket).Error; err != nil {
		return nil, err
	}
	if len(byTicket) > 0 {
		return &byTicket[0], nil
	}

	candidates := []string{code}
	if _, id, _, ok := utils.ParseTicketPayload(code); ok && id != code {
		candidates = append(candidates, id)
	}
	for _, id := range candidates {
		var byID []models.Registration
		if err := db.Where("id = ?", id).Limit(1).Find(&byID).Error; err != nil {
			return nil, err
		}
		if len(byID) > 0 {
			return &byID[0], nil
		}
	}
	return nil, ErrRegistrationNotFound
}

func (s *AttendanceService) duplicate(existing *models.AttendanceRecord, method models.CheckInMethod) models.CheckInResult {
	s.Metrics.ObserveCheckIn(metrics.OutcomeDuplicate, method)
	return models.CheckInResult{
		Message: fmt.Sprintf("Attendance already recorded for %s at %s.",
			existing.AttendeeName, existing.Timestamp.Format("Jan 2, 2006 3:04 PM MST")),
	}
}

func (s *AttendanceService) infraFailure(step, code string, method models.CheckInMethod, err error) models.CheckInResult {
	s.Metrics.ObserveCheckIn(metrics.OutcomeError, method)
	s.Logger.Error("check-in failed",
		zap.String("step", step),
		zap.String("code", code),
		zap.Error(err))
	return models.CheckInResult{Message: msgInfraFailure}
}

func (s *AttendanceService) publish(eventType, id string, data any) {
	if s.Hub == nil {
		return
	}
	s.Hub.Publish(feed.Event{Collection: CollectionAttendance, Type: eventType, ID: id, Data: data})
}

// List returns every attendance record, newest first.
func (s *AttendanceService) List(ctx context.Context) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	if err := s.DB.WithContext(ctx).Order("timestamp DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Stats counts records by method and by status.
func (s *AttendanceService) Stats(ctx context.Context) (models.AttendanceStats, error) {
	records, err := s.List(ctx)
	if err != nil {
		return models.AttendanceStats{}, err
	}
	return ComputeAttendanceStats(records), nil
}

func ComputeAttendanceStats(records []models.AttendanceRecord) models.AttendanceStats {
	stats := models.AttendanceStats{
		Total:    int64(len(records)),
		ByMethod: map[models.CheckInMethod]int64{models.MethodScan: 0, models.MethodManual: 0},
		ByStatus: map[models.RegistrationStatus]int64{},
	}
	for _, r := range records {
		stats.ByMethod[r.Method]++
		stats.ByStatus[r.Status]++
	}
	return stats
}

// DeleteForRegistration removes a registration's attendance. Errors are
// logged and swallowed so they never block deleting the registration.
func (s *AttendanceService) DeleteForRegistration(ctx context.Context, registrationID string) {
	res := s.DB.WithContext(ctx).Where("registration_id = ?", registrationID).Delete(&models.AttendanceRecord{})
	if res.Error != nil {
		s.Logger.Warn("failed to delete attendance for registration",
			zap.String("registration_id", registrationID), zap.Error(res.Error))
		return
	}
	if res.RowsAffected > 0 {
		s.publish(feed.EventDeleted, registrationID, nil)
	}
}

// DeleteRecord removes one attendance record.
func (s *AttendanceService) DeleteRecord(ctx context.Context, id string) models.ActionResult {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.ActionResult{Message: "attendance id required"}
	}
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.AttendanceRecord{})
	if res.Error != nil {
		s.Logger.Error("failed to delete attendance record", zap.String("id", id), zap.Error(res.Error))
		return models.ActionResult{Message: "Failed to delete attendance record. Please try again."}
	}
	if res.RowsAffected == 0 {
		return models.ActionResult{Message: msgAttendanceNotFound}
	}
	s.publish(feed.EventDeleted, id, nil)
	return models.ActionResult{Success: true, Message: "Attendance record deleted."}
}
