package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conference-portal/config"
	"conference-portal/feed"
	"conference-portal/handlers"
	"conference-portal/metrics"
	"conference-portal/middleware"
	"conference-portal/services"
	"conference-portal/site"
	"conference-portal/utils"
	"conference-portal/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const maxBodySize = 12 * 1024 * 1024

// stack is every long-lived component the HTTP server depends on.
type stack struct {
	Hub           *feed.Hub
	Metrics       *metrics.Metrics
	Settings      *services.SettingsService
	Watcher       *workers.SettingsWatcher
	Attendance    *services.AttendanceService
	Registrations *services.RegistrationService
	Site          *services.SiteService
	SiteStore     *site.Store
}

func newStack(cfg *config.Config, db *gorm.DB, store utils.ObjectStore, logger *zap.Logger) *stack {
	hub := feed.NewHub(logger)
	m := metrics.New()
	settings := services.NewSettingsService(db, hub, logger)
	watcher := workers.NewSettingsWatcher(settings, hub, cfg.SettingsPollInterval, logger)
	attendance := services.NewAttendanceService(db, hub, m, logger)
	registrations := services.NewRegistrationService(db, attendance, watcher, store, hub, cfg.EventTag, logger)
	services.RegisterFeeds(hub, attendance, registrations, settings)

	siteStore := site.NewStore(cfg.SiteContentPath, logger)
	return &stack{
		Hub:           hub,
		Metrics:       m,
		Settings:      settings,
		Watcher:       watcher,
		Attendance:    attendance,
		Registrations: registrations,
		Site:          services.NewSiteService(siteStore, logger),
		SiteStore:     siteStore,
	}
}

func newServer(cfg *config.Config, s *stack, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             maxBodySize,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupOpsRoutes(app, s.Metrics)

	// Everything below is only reachable through the gateway.
	app.Use("/attendance/stream", middleware.StreamTokenFromQuery())
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, logger))

	handlers.SetupSiteRoutes(app, s.Site)
	handlers.SetupRegistrationRoutes(app, s.Registrations, s.Settings, logger)
	handlers.SetupAttendanceRoutes(app, s.Attendance, logger)
	app.Static("/uploads", "./uploads")

	return app
}

func serveCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, live feed and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), e)
		},
	}
}

func runServe(ctx context.Context, e *env) error {
	cfg, logger := e.cfg, e.logger
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	db, err := e.openDB()
	if err != nil {
		return err
	}
	if err := utils.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	store, err := e.objectStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	s := newStack(cfg, db, store, logger)

	if cfg.NATSURL != "" {
		conn, err := feed.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer conn.Drain()
		s.Hub.SetForwarder(feed.NewNATSBridge(conn, cfg.NATSSubject))
		logger.Info("forwarding events to NATS", zap.String("subject", cfg.NATSSubject))
	}

	if err := s.SiteStore.Load(); err != nil {
		logger.Warn("site content not loaded", zap.Error(err))
	}

	sched, err := services.StartScheduler(ctx, services.Jobs{
		Settings:      s.Settings,
		Registrations: s.Registrations,
		Attendance:    s.Attendance,
		Metrics:       s.Metrics,
		Logger:        logger,
	}, cfg.MetricsInterval)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Warn("scheduler shutdown failed", zap.Error(err))
		}
	}()

	app := newServer(cfg, s, logger)

	g, gctx := errgroup.WithContext(ctx)
	s.Attendance.StreamContext = gctx
	g.Go(func() error {
		s.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.Watcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := s.SiteStore.Watch(gctx); err != nil {
			logger.Warn("site content hot reload disabled", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.Strings("allowed_origins", cfg.AllowedOrigins))
		return app.Listen(cfg.ListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
