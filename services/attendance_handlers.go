package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"conference-portal/middleware"
	"conference-portal/models"
	"conference-portal/scanner"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxScanImageSize = 10 * 1024 * 1024

type checkInRequest struct {
	Code   string `json:"code"`
	Method string `json:"method"`
}

func operatorID(c *fiber.Ctx) string {
	if id, ok := c.Locals(middleware.LocalUserID).(string); ok {
		return id
	}
	return ""
}

// CheckIn records attendance for a typed or scanned code. Domain outcomes
// are always 200 with success=false; only malformed requests are 400.
func (s *AttendanceService) CheckIn(c *fiber.Ctx) error {
	var req checkInRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	method := models.CheckInMethod(strings.ToLower(strings.TrimSpace(req.Method)))
	if method == "" {
		method = models.MethodManual
	}
	if !method.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "method must be scan or manual"})
	}

	code := req.Code
	if method == models.MethodManual {
		code = strings.TrimSpace(code)
	}
	if strings.TrimSpace(code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
	}

	return c.JSON(s.RecordAttendance(c.UserContext(), code, method, operatorID(c)))
}

// CheckInImage decodes the QR code in an uploaded photo and records it as a
// scan.
func (s *AttendanceService) CheckInImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image is required"})
	}
	if fileHeader.Size > maxScanImageSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image too large (max 10MB)"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read image"})
	}
	defer file.Close()

	code, err := scanner.DecodeImage(file)
	if err != nil {
		return c.JSON(models.CheckInResult{Message: "No QR code found in the image. Try again or enter the code manually."})
	}
	return c.JSON(s.RecordAttendance(c.UserContext(), code, models.MethodScan, operatorID(c)))
}

func (s *AttendanceService) ListAttendance(c *fiber.Ctx) error {
	records, err := s.List(c.UserContext())
	if err != nil {
		s.Logger.Error("failed to list attendance", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch attendance"})
	}
	return c.JSON(records)
}

func (s *AttendanceService) GetAttendanceStats(c *fiber.Ctx) error {
	stats, err := s.Stats(c.UserContext())
	if err != nil {
		s.Logger.Error("failed to compute attendance stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to compute stats"})
	}
	return c.JSON(stats)
}

func (s *AttendanceService) DeleteAttendance(c *fiber.Ctx) error {
	res := s.DeleteRecord(c.UserContext(), c.Params("id"))
	if !res.Success {
		status := fiber.StatusInternalServerError
		if res.Message == msgAttendanceNotFound {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(res)
	}
	return c.JSON(res)
}

// StreamAttendance pushes a fresh attendance list over SSE whenever a record
// is written or deleted.
func (s *AttendanceService) StreamAttendance(c *fiber.Ctx) error {
	if s.Hub == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "live feed disabled"})
	}

	parent := s.StreamContext
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	snapshots, unsubscribe, err := s.Hub.Subscribe(ctx, CollectionAttendance, nil)
	if err != nil {
		cancel()
		s.Logger.Error("failed to subscribe to attendance", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to subscribe"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				payload, err := json.Marshal(snap)
				if err != nil {
					s.Logger.Error("failed to encode snapshot", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
