package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"conference-portal/config"
	"conference-portal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second interrupt kills the process even if a read is blocked.
		<-ctx.Done()
		stop()
	}()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is shared by every subcommand once the root pre-run has loaded it.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (e *env) openDB() (*gorm.DB, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := utils.OpenDB(e.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// objectStore returns the R2 store when configured, the local uploads
// directory otherwise.
func (e *env) objectStore(ctx context.Context) (utils.ObjectStore, error) {
	if e.cfg.R2.Enabled() {
		return utils.NewR2Store(ctx, e.cfg.R2)
	}
	e.logger.Info("R2 not configured, storing files under ./uploads")
	return utils.NewLocalStore("uploads", "/uploads")
}

func rootCmd() *cobra.Command {
	var logLevel string
	e := &env{}

	cmd := &cobra.Command{
		Use:           "conference-portal",
		Short:         "Conference site backend and attendance check-in",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, foundEnv, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger, err := utils.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			if !foundEnv {
				logger.Debug("no .env file found, reading environment variables directly")
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	cmd.AddCommand(
		serveCmd(e),
		migrateCmd(e),
		checkinCmd(e),
		attendanceCmd(e),
		registrationsCmd(e),
	)
	return cmd
}

func migrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.openDB()
			if err != nil {
				return err
			}
			if err := utils.Migrate(db); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			e.logger.Info("database migrated")
			return nil
		},
	}
}
