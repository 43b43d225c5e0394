package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conference-portal/feed"
	"conference-portal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const CollectionSettings = models.SettingsCollection

var ErrInvalidEventStatus = errors.New("invalid event status")

type SettingsService struct {
	DB     *gorm.DB
	Hub    *feed.Hub
	Logger *zap.Logger
	Now    func() time.Time
}

func NewSettingsService(db *gorm.DB, hub *feed.Hub, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{DB: db, Hub: hub, Logger: logger, Now: time.Now}
}

// Load returns settings/general, or the defaults when no admin has saved it.
func (s *SettingsService) Load(ctx context.Context) (models.Settings, error) {
	var rows []models.Settings
	if err := s.DB.WithContext(ctx).Where("id = ?", models.GeneralSettingsID).Limit(1).Find(&rows).Error; err != nil {
		return models.Settings{}, err
	}
	if len(rows) == 0 {
		return models.DefaultSettings(), nil
	}
	return rows[0], nil
}

func (s *SettingsService) Save(ctx context.Context, settings models.Settings) (models.Settings, error) {
	if !settings.EventStatus.Valid() {
		return models.Settings{}, ErrInvalidEventStatus
	}
	settings.ID = models.GeneralSettingsID
	settings.UpdatedAt = s.Now().UTC()
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		Create(&settings).Error
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	if s.Hub != nil {
		s.Hub.Publish(feed.Event{Collection: CollectionSettings, Type: feed.EventUpdated, ID: settings.ID, Data: settings})
	}
	return settings, nil
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	EventStatus          *string    `json:"event_status"`
	RegistrationOpen     *bool      `json:"registration_open"`
	RegistrationClosesAt *time.Time `json:"registration_closes_at"`
	ClearClosesAt        bool       `json:"clear_registration_closes_at"`
}

func (u SettingsUpdate) apply(settings *models.Settings) error {
	if u.EventStatus != nil {
		status := models.EventStatus(strings.ToLower(strings.TrimSpace(*u.EventStatus)))
		if !status.Valid() {
			return ErrInvalidEventStatus
		}
		settings.EventStatus = status
	}
	if u.RegistrationOpen != nil {
		settings.RegistrationOpen = *u.RegistrationOpen
	}
	if u.ClearClosesAt {
		settings.RegistrationClosesAt = nil
	} else if u.RegistrationClosesAt != nil {
		closesAt := u.RegistrationClosesAt.UTC()
		settings.RegistrationClosesAt = &closesAt
	}
	return nil
}

// Update applies a partial update on top of the stored settings.
func (s *SettingsService) Update(ctx context.Context, update SettingsUpdate, updatedBy string) (models.Settings, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	if err := update.apply(&settings); err != nil {
		return models.Settings{}, err
	}
	settings.UpdatedBy = updatedBy
	return s.Save(ctx, settings)
}

// CloseExpiredRegistration turns registration off once its scheduled close
// time has passed. It reports whether anything changed.
func (s *SettingsService) CloseExpiredRegistration(ctx context.Context) (bool, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	if !settings.RegistrationOpen || settings.RegistrationClosesAt == nil {
		return false, nil
	}
	if s.Now().Before(*settings.RegistrationClosesAt) {
		return false, nil
	}
	settings.RegistrationOpen = false
	settings.UpdatedBy = "scheduler"
	if _, err := s.Save(ctx, settings); err != nil {
		return false, err
	}
	s.Logger.Info("registration closed on schedule", zap.Time("closes_at", *settings.RegistrationClosesAt))
	return true, nil
}

// GetSettings serves settings/general to the public site and the admin
// console.
func (s *SettingsService) GetSettings(c *fiber.Ctx) error {
	settings, err := s.Load(c.UserContext())
	if err != nil {
		s.Logger.Error("failed to load settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load settings"})
	}
	return c.JSON(fiber.Map{
		"settings":                settings,
		"accepting_registrations": settings.AcceptingRegistrations(s.Now()),
	})
}

func (s *SettingsService) UpdateSettings(c *fiber.Ctx) error {
	var update SettingsUpdate
	if err := c.BodyParser(&update); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	settings, err := s.Update(c.UserContext(), update, operatorID(c))
	if errors.Is(err, ErrInvalidEventStatus) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "event_status must be upcoming, ongoing or ended"})
	}
	if err != nil {
		s.Logger.Error("failed to update settings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update settings"})
	}
	return c.JSON(settings)
}
