package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"conference-portal/feed"
	"conference-portal/models"
	"conference-portal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ticketQRSize = 512

var (
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrInvalidStatus      = errors.New("invalid registration status")
)

// ValidationError reports a rejected registration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// SettingsProvider exposes the current settings/general value.
type SettingsProvider interface {
	Current() models.Settings
}

// RegistrationInput is what the public form submits.
type RegistrationInput struct {
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
}

func (in *RegistrationInput) normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.MiddleName = strings.TrimSpace(in.MiddleName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Organization = strings.TrimSpace(in.Organization)
	in.Phone = strings.TrimSpace(in.Phone)
}

func (in RegistrationInput) validate() error {
	if in.FirstName == "" {
		return &ValidationError{Field: "first_name", Message: "is required"}
	}
	if in.LastName == "" {
		return &ValidationError{Field: "last_name", Message: "is required"}
	}
	if in.Email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return &ValidationError{Field: "email", Message: "is not a valid address"}
	}
	if strings.Contains(in.Email, "|") {
		return &ValidationError{Field: "email", Message: "must not contain '|'"}
	}
	return nil
}

type RegistrationService struct {
	DB         *gorm.DB
	Attendance *AttendanceService
	Settings   SettingsProvider
	Store      utils.ObjectStore
	Hub        *feed.Hub
	Logger     *zap.Logger
	EventTag   string
	Now        func() time.Time
}

func NewRegistrationService(db *gorm.DB, attendance *AttendanceService, settings SettingsProvider, store utils.ObjectStore, hub *feed.Hub, eventTag string, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		DB:         db,
		Attendance: attendance,
		Settings:   settings,
		Store:      store,
		Hub:        hub,
		Logger:     logger,
		EventTag:   eventTag,
		Now:        time.Now,
	}
}

// CreateRegistration stores a new pending registration. The ticket code is the
// QR payload so a scanned ticket matches on the first lookup.
func (s *RegistrationService) CreateRegistration(ctx context.Context, in RegistrationInput) (*models.Registration, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if s.Settings != nil && !s.Settings.Current().AcceptingRegistrations(s.Now()) {
		return nil, ErrRegistrationClosed
	}

	id := uuid.NewString()
	reg := &models.Registration{
		ID:           id,
		TicketCode:   utils.TicketPayload(s.EventTag, id, in.Email),
		Status:       models.RegistrationPending,
		FirstName:    in.FirstName,
		MiddleName:   in.MiddleName,
		LastName:     in.LastName,
		Email:        in.Email,
		Organization: in.Organization,
		Phone:        in.Phone,
	}

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(reg)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to create registration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicateEmail
	}

	if url, err := s.storeTicket(ctx, reg); err != nil {
		s.Logger.Warn("failed to store ticket QR", zap.String("registration_id", reg.ID), zap.Error(err))
	} else {
		reg.TicketQRURL = url
		if err := s.DB.WithContext(ctx).Model(reg).Update("ticket_qr_url", url).Error; err != nil {
			s.Logger.Warn("failed to save ticket QR url", zap.String("registration_id", reg.ID), zap.Error(err))
		}
	}

	s.publish(feed.EventCreated, reg.ID, reg)
	s.Logger.Info("registration created", zap.String("registration_id", reg.ID))
	return reg, nil
}

func (s *RegistrationService) storeTicket(ctx context.Context, reg *models.Registration) (string, error) {
	if s.Store == nil {
		return "", errors.New("no object store configured")
	}
	png, err := utils.TicketPNG(reg.LookupCode(), ticketQRSize)
	if err != nil {
		return "", err
	}
	return s.Store.Put(ctx, "tickets/"+reg.ID+".png", png, "image/png")
}

func (s *RegistrationService) Get(ctx context.Context, id string) (*models.Registration, error) {
	var reg models.Registration
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// List returns registrations newest first, optionally limited to one status.
func (s *RegistrationService) List(ctx context.Context, status models.RegistrationStatus) ([]models.Registration, error) {
	query := s.DB.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		query = query.Where("status = ?", status)
	}
	var regs []models.Registration
	if err := query.Find(&regs).Error; err != nil {
		return nil, err
	}
	return regs, nil
}

// UpdateStatus moves a registration to status and records who reviewed it.
func (s *RegistrationService) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, reviewer string) (*models.Registration, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	res := s.DB.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "reviewed_by": reviewer})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update registration status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrRegistrationNotFound
	}

	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(feed.EventUpdated, reg.ID, reg)
	s.Logger.Info("registration status changed",
		zap.String("registration_id", id),
		zap.String("status", string(status)),
		zap.String("reviewer", reviewer))
	return reg, nil
}

// Delete removes a registration after a best-effort cleanup of its
// attendance.
func (s *RegistrationService) Delete(ctx context.Context, id string) error {
	if s.Attendance != nil {
		s.Attendance.DeleteForRegistration(ctx, id)
	}
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Registration{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete registration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRegistrationNotFound
	}
	s.publish(feed.EventDeleted, id, nil)
	return nil
}

func (s *RegistrationService) Stats(ctx context.Context) (models.RegistrationStats, error) {
	var rows []struct {
		Status models.RegistrationStatus
		Count  int64
	}
	err := s.DB.WithContext(ctx).Model(&models.Registration{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return models.RegistrationStats{}, err
	}

	var stats models.RegistrationStats
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.RegistrationPending:
			stats.Pending = r.Count
		case models.RegistrationConfirmed:
			stats.Confirmed = r.Count
		case models.RegistrationRejected:
			stats.Rejected = r.Count
		}
	}
	if err := s.DB.WithContext(ctx).Model(&models.AttendanceRecord{}).Count(&stats.CheckedIn).Error; err != nil {
		return models.RegistrationStats{}, err
	}
	return stats, nil
}

func (s *RegistrationService) publish(eventType, id string, data any) {
	if s.Hub == nil {
		return
	}
	s.Hub.Publish(feed.Event{Collection: CollectionRegistrations, Type: eventType, ID: id, Data: data})
}
