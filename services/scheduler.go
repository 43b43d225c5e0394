// services/scheduler.go
package services

import (
	"context"
	"time"

	"conference-portal/metrics"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Jobs bundles the periodic work the server runs.
type Jobs struct {
	Settings      *SettingsService
	Registrations *RegistrationService
	Attendance    *AttendanceService
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// StartScheduler starts the recurring jobs: closing registration at its
// scheduled time every 30s and refreshing metric gauges every metricsEvery.
// The caller shuts the scheduler down.
func StartScheduler(ctx context.Context, jobs Jobs, metricsEvery time.Duration) (gocron.Scheduler, error) {
	if jobs.Logger == nil {
		jobs.Logger = zap.NewNop()
	}
	logger := jobs.Logger

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if jobs.Settings != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(30*time.Second),
			gocron.NewTask(func() {
				if _, err := jobs.Settings.CloseExpiredRegistration(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("scheduled registration close failed", zap.Error(err))
				}
			}),
			gocron.WithName("close-registration"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	if jobs.Metrics != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(metricsEvery),
			gocron.NewTask(func() { jobs.RefreshMetrics(ctx) }),
			gocron.WithName("refresh-metrics"),
			gocron.WithStartAt(gocron.WithStartImmediately()),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}

// RefreshMetrics recomputes the attendance and registration gauges.
func (j Jobs) RefreshMetrics(ctx context.Context) {
	if j.Attendance != nil {
		if stats, err := j.Attendance.Stats(ctx); err != nil {
			j.Logger.Warn("failed to refresh attendance metrics", zap.Error(err))
		} else {
			j.Metrics.SetAttendance(stats)
		}
	}
	if j.Registrations != nil {
		if stats, err := j.Registrations.Stats(ctx); err != nil {
			j.Logger.Warn("failed to refresh registration metrics", zap.Error(err))
		} else {
			j.Metrics.SetRegistrations(stats)
		}
	}
}
