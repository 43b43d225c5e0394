package services

import (
	"bytes"
	"errors"
	"image/png"
	"strconv"
	"strings"

	"conference-portal/pattern"
	"conference-portal/site"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const timeFormatHTTP = "Mon, 02 Jan 2006 15:04:05 GMT"

// SiteService serves the public informational pages from the content store.
type SiteService struct {
	Store  *site.Store
	Logger *zap.Logger
}

func NewSiteService(store *site.Store, logger *zap.Logger) *SiteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteService{Store: store, Logger: logger}
}

// content returns the loaded content and stamps Last-Modified, or nil before
// the first successful load.
func (s *SiteService) content(c *fiber.Ctx) *site.Content {
	content := s.Store.Current()
	if content != nil {
		c.Set(fiber.HeaderLastModified, s.Store.LoadedAt().UTC().Format(timeFormatHTTP))
	}
	return content
}

func notLoaded(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "site content not loaded"})
}

func (s *SiteService) GetSite(c *fiber.Ctx) error {
	content := s.content(c)
	if content == nil {
		return notLoaded(c)
	}
	return c.JSON(content)
}

// GetAgenda lists sessions, optionally for one day (?day=2).
func (s *SiteService) GetAgenda(c *fiber.Ctx) error {
	content := s.content(c)
	if content == nil {
		return notLoaded(c)
	}
	dayParam := c.Query("day")
	if dayParam == "" {
		return c.JSON(content.Agenda)
	}
	day, err := strconv.Atoi(dayParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "day must be a number"})
	}
	sessions := make([]site.Session, 0, len(content.Agenda))
	for _, session := range content.Agenda {
		if session.Day == day {
			sessions = append(sessions, session)
		}
	}
	return c.JSON(sessions)
}

func (s *SiteService) GetSpeakers(c *fiber.Ctx) error {
	content := s.content(c)
	if content == nil {
		return notLoaded(c)
	}
	return c.JSON(content.Speakers)
}

// GetSpeaker returns one speaker with the sessions they appear in.
func (s *SiteService) GetSpeaker(c *fiber.Ctx) error {
	content := s.content(c)
	if content == nil {
		return notLoaded(c)
	}
	speaker, err := content.Speaker(c.Params("slug"))
	if errors.Is(err, site.ErrSpeakerNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "speaker not found"})
	}
	return c.JSON(fiber.Map{
		"speaker":  speaker,
		"sessions": content.SessionsBy(speaker.Slug),
	})
}

func (s *SiteService) GetPartners(c *fiber.Ctx) error {
	content := s.content(c)
	if content == nil {
		return notLoaded(c)
	}
	if c.QueryBool("grouped") {
		return c.JSON(content.PartnersByTier())
	}
	return c.JSON(content.Partners)
}

func (s *SiteService) GetFAQ(c *fiber.Ctx) error {
	content := s.content(c)
	if content == nil {
		return notLoaded(c)
	}
	return c.JSON(content.FAQ)
}

// GetPattern renders the decorative grid for a seed as SVG, or PNG when the
// seed ends in ".png". ?size= sets the grid size.
func (s *SiteService) GetPattern(c *fiber.Ctx) error {
	seed := c.Params("seed")
	asPNG := strings.HasSuffix(seed, ".png")
	seed = strings.TrimSuffix(strings.TrimSuffix(seed, ".png"), ".svg")

	grid, err := pattern.Generate(seed, c.QueryInt("size", pattern.DefaultSize), nil)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	cell := c.QueryInt("cell", 16)
	if cell < 1 || cell > 64 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cell must be between 1 and 64"})
	}

	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	if asPNG {
		var buf bytes.Buffer
		if err := png.Encode(&buf, grid.Image(cell)); err != nil {
			s.Logger.Error("failed to encode pattern", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to render pattern"})
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(buf.Bytes())
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.SendString(grid.SVG(cell))
}
