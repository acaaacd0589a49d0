package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Job names used for registration, logging and metrics.
const (
	JobSweepExpiredTokens    = "sweep_expired_tokens"
	JobAutoCompleteBookings  = "auto_complete_bookings"
	JobAutoCancelBookings    = "auto_cancel_bookings"
	JobDispatchNotifications = "dispatch_notifications"
	JobSendDailyReminders    = "send_daily_reminders"
	JobPurgeNotifications    = "purge_old_notifications"
)

// Crons holds the cron expression for each maintenance job.
type Crons struct {
	SweepExpiredTokens    string
	AutoCompleteBookings  string
	AutoCancelBookings    string
	DispatchNotifications string
	SendDailyReminders    string
	PurgeNotifications    string
}

func DefaultCrons() Crons {
	return Crons{
		SweepExpiredTokens:    "0 3 * * *",
		AutoCompleteBookings:  "0 * * * *",
		AutoCancelBookings:    "30 * * * *",
		DispatchNotifications: "* * * * *",
		SendDailyReminders:    "0 8 * * *",
		PurgeNotifications:    "0 4 * * *",
	}
}

const jobTimeout = 5 * time.Minute

type jobFunc func(context.Context) (RunResult, error)

// RegisterMaintenanceJobs schedules every maintenance job on svc.
func RegisterMaintenanceJobs(svc *Service, m *Maintenance, crons Crons) error {
	defaults := DefaultCrons()
	jobs := []struct {
		name string
		cron string
		def  string
		run  jobFunc
	}{
		{JobSweepExpiredTokens, crons.SweepExpiredTokens, defaults.SweepExpiredTokens, m.SweepExpiredTokens},
		{JobAutoCompleteBookings, crons.AutoCompleteBookings, defaults.AutoCompleteBookings, m.AutoCompleteBookings},
		{JobAutoCancelBookings, crons.AutoCancelBookings, defaults.AutoCancelBookings, m.AutoCancelBookings},
		{JobDispatchNotifications, crons.DispatchNotifications, defaults.DispatchNotifications, m.DispatchNotifications},
		{JobSendDailyReminders, crons.SendDailyReminders, defaults.SendDailyReminders, m.SendDailyReminders},
		{JobPurgeNotifications, crons.PurgeNotifications, defaults.PurgeNotifications, m.PurgeOldNotifications},
	}
	for _, job := range jobs {
		expr := job.cron
		if expr == "" {
			expr = job.def
		}
		if _, err := svc.AddJob(job.name, expr, m.task(job.name, job.run)); err != nil {
			return err
		}
	}
	return nil
}

// task adapts a job body into a gocron task with its own context, logger and
// metrics.
func (m *Maintenance) task(name string, run jobFunc) func() {
	return func() {
		logger := log.With().Str("job_name", name).Logger()
		ctx, cancel := context.WithTimeout(logger.WithContext(context.Background()), jobTimeout)
		defer cancel()

		started := time.Now()
		result, err := run(ctx)
		m.metrics.ObserveJob(name, time.Since(started), result.Processed, result.Failed, err)
		if err != nil {
			logger.Error().Err(err).Msg("Maintenance job failed")
			return
		}
		if result.Processed > 0 || result.Failed > 0 {
			logger.Info().
				Int("processed", result.Processed).
				Int("failed", result.Failed).
				Int("skipped", result.Skipped).
				Msg("Maintenance job finished")
		}
	}
}
