package services

import (
	"errors"
	"strings"

	"conference-portal/models"
	"conference-portal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type statusRequest struct {
	Status string `json:"status"`
}

// Register is the public registration form endpoint.
func (s *RegistrationService) Register(c *fiber.Ctx) error {
	var in RegistrationInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	reg, err := s.CreateRegistration(c.UserContext(), in)
	var verr *ValidationError
	switch {
	case err == nil:
		return c.Status(fiber.StatusCreated).JSON(reg)
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, ErrRegistrationClosed):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "registration is closed"})
	case errors.Is(err, ErrDuplicateEmail):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "this email is already registered"})
	default:
		s.Logger.Error("failed to create registration", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create registration"})
	}
}

// GetTicketQR renders the ticket QR code for a registration as PNG.
func (s *RegistrationService) GetTicketQR(c *fiber.Ctx) error {
	reg, err := s.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.lookupError(c, err)
	}
	png, err := utils.TicketPNG(reg.LookupCode(), ticketQRSize)
	if err != nil {
		s.Logger.Error("failed to render ticket QR", zap.String("registration_id", reg.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to render ticket"})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (s *RegistrationService) ListRegistrations(c *fiber.Ctx) error {
	status := models.RegistrationStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	regs, err := s.List(c.UserContext(), status)
	if errors.Is(err, ErrInvalidStatus) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be pending, confirmed or rejected"})
	}
	if err != nil {
		s.Logger.Error("failed to list registrations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch registrations"})
	}
	return c.JSON(regs)
}

func (s *RegistrationService) GetRegistration(c *fiber.Ctx) error {
	reg, err := s.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.lookupError(c, err)
	}
	return c.JSON(reg)
}

func (s *RegistrationService) UpdateRegistrationStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	status := models.RegistrationStatus(strings.ToLower(strings.TrimSpace(req.Status)))

	reg, err := s.UpdateStatus(c.UserContext(), c.Params("id"), status, operatorID(c))
	if errors.Is(err, ErrInvalidStatus) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be pending, confirmed or rejected"})
	}
	if err != nil {
		return s.lookupError(c, err)
	}
	return c.JSON(reg)
}

func (s *RegistrationService) DeleteRegistration(c *fiber.Ctx) error {
	if err := s.Delete(c.UserContext(), c.Params("id")); err != nil {
		return s.lookupError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *RegistrationService) GetRegistrationStats(c *fiber.Ctx) error {
	stats, err := s.Stats(c.UserContext())
	if err != nil {
		s.Logger.Error("failed to compute registration stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute stats"})
	}
	return c.JSON(stats)
}

func (s *RegistrationService) lookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrRegistrationNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "registration not found"})
	}
	s.Logger.Error("registration lookup failed", zap.String("id", c.Params("id")), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch registration"})
}
