package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/booking"
	"github.com/codr1/slotwise/internal/clock"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/metrics"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/notify"
)

const (
	// AutoCancelNote is appended to bookings cancelled for staying PENDING too long.
	AutoCancelNote = "Automatically cancelled after 24 hours pending."

	autoCompleteAfter  = 24 * time.Hour
	autoCancelAfter    = 24 * time.Hour
	notificationMaxAge = 30 * 24 * time.Hour
)

var (
	// errNotDue marks a notification that is left for a later cycle.
	errNotDue = errors.New("notification not due")
	// errExpired marks a reminder that can never become due.
	errExpired = errors.New("reminder expired")
)

// RunResult counts the items a job touched.
type RunResult struct {
	Processed int
	Failed    int
	Skipped   int
}

// Maintenance holds the bodies of the periodic jobs. Each body reads now from
// the clock, processes every item in its own transaction, and logs and counts
// per-item failures instead of aborting.
type Maintenance struct {
	db       *db.DB
	notifier notify.Notifier
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func NewMaintenance(database *db.DB, notifier notify.Notifier, clk clock.Clock, m *metrics.Metrics) *Maintenance {
	if clk == nil {
		clk = clock.System{Location: database.Location()}
	}
	return &Maintenance{
		db:       database,
		notifier: notifier,
		clock:    clk,
		metrics:  m,
	}
}

// SweepExpiredTokens deletes verification tokens past their expiry.
func (m *Maintenance) SweepExpiredTokens(ctx context.Context) (RunResult, error) {
	removed, err := m.db.Queries.DeleteExpiredVerificationTokens(ctx, m.clock.Now())
	if err != nil {
		return RunResult{}, err
	}
	log.Ctx(ctx).Debug().Int64("deleted_tokens", removed).Msg("Swept expired verification tokens")
	return RunResult{Processed: int(removed)}, nil
}

// AutoCompleteBookings completes CONFIRMED bookings that ended over a day ago.
func (m *Maintenance) AutoCompleteBookings(ctx context.Context) (RunResult, error) {
	now := m.clock.Now()
	cutoff := now.Add(-autoCompleteAfter)
	candidates, err := m.db.Queries.ListBookings(ctx, models.BookingFilter{
		Statuses:   []models.BookingStatus{models.StatusConfirmed},
		EndsBefore: &cutoff,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("list bookings to complete: %w", err)
	}

	logger := log.Ctx(ctx)
	var result RunResult
	for _, b := range candidates {
		if b.Status != models.StatusConfirmed || !b.EndTime.Before(cutoff) {
			continue
		}
		err := m.db.RunInTx(ctx, func(tx *db.DB) error {
			ok, err := tx.Queries.UpdateBookingStatus(ctx, db.UpdateBookingStatusParams{
				ID:             b.ID,
				Status:         models.StatusCompleted,
				ExpectedStatus: models.StatusConfirmed,
				UpdatedAt:      now,
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("booking %d is no longer CONFIRMED", b.ID)
			}
			return nil
		})
		if err != nil {
			result.Failed++
			logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to auto-complete booking")
			continue
		}
		result.Processed++
		logger.Info().Int64("booking_id", b.ID).Msg("Booking auto-completed")
	}
	return result, nil
}

// AutoCancelBookings cancels bookings left PENDING for over a day.
func (m *Maintenance) AutoCancelBookings(ctx context.Context) (RunResult, error) {
	now := m.clock.Now()
	cutoff := now.Add(-autoCancelAfter)
	candidates, err := m.db.Queries.ListBookings(ctx, models.BookingFilter{
		Statuses:      []models.BookingStatus{models.StatusPending},
		CreatedBefore: &cutoff,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("list bookings to cancel: %w", err)
	}

	logger := log.Ctx(ctx)
	var result RunResult
	for _, b := range candidates {
		if b.Status != models.StatusPending || !b.CreatedAt.Before(cutoff) {
			continue
		}
		notes := appendNote(b.Notes, AutoCancelNote)
		err := m.db.RunInTx(ctx, func(tx *db.DB) error {
			ok, err := tx.Queries.UpdateBookingStatus(ctx, db.UpdateBookingStatusParams{
				ID:             b.ID,
				Status:         models.StatusCancelled,
				ExpectedStatus: models.StatusPending,
				Notes:          &notes,
				UpdatedAt:      now,
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("booking %d is no longer PENDING", b.ID)
			}
			return nil
		})
		if err != nil {
			result.Failed++
			logger.Error().Err(err).Int64("booking_id", b.ID).Msg("Failed to auto-cancel booking")
			continue
		}
		result.Processed++
		logger.Info().Int64("booking_id", b.ID).Msg("Booking auto-cancelled")
	}
	return result, nil
}

func appendNote(notes, note string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}

// DispatchNotifications sends every unsent EMAIL notification whose title
// names a known kind. Reminders wait until their booking is within a day and
// are dropped once it has started or is no longer active.
func (m *Maintenance) DispatchNotifications(ctx context.Context) (RunResult, error) {
	pending, err := m.db.Queries.ListNotifications(ctx, models.NotificationFilter{
		Channel: models.ChannelEmail,
		Unsent:  true,
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("list unsent notifications: %w", err)
	}
	return m.dispatchAll(ctx, pending), nil
}

// SendDailyReminders is the daily backstop for reminders whose booking starts
// within the next day.
func (m *Maintenance) SendDailyReminders(ctx context.Context) (RunResult, error) {
	pending, err := m.db.Queries.ListNotifications(ctx, models.NotificationFilter{
		Channel:       models.ChannelEmail,
		Unsent:        true,
		TitleContains: string(models.KindReminder),
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("list unsent reminders: %w", err)
	}
	return m.dispatchAll(ctx, pending), nil
}

func (m *Maintenance) dispatchAll(ctx context.Context, pending []models.Notification) RunResult {
	logger := log.Ctx(ctx)
	var result RunResult
	for _, n := range pending {
		kind, ok := models.ClassifyTitle(n.Title)
		if !ok {
			result.Skipped++
			logger.Warn().Int64("notification_id", n.ID).Str("title", n.Title).Msg("Skipping notification with unknown title")
			continue
		}

		err := m.dispatch(ctx, n, kind)
		switch {
		case errors.Is(err, errNotDue):
			result.Skipped++
		case errors.Is(err, errExpired):
			result.Skipped++
			m.dropExpired(ctx, n)
		case err != nil:
			result.Failed++
			m.metrics.ObserveNotification(string(kind), "failed")
			logger.Error().Err(err).Int64("notification_id", n.ID).Str("kind", string(kind)).Msg("Failed to dispatch notification")
		default:
			result.Processed++
			m.metrics.ObserveNotification(string(kind), "sent")
		}
	}
	return result
}

// dispatch sends one notification and marks it sent. It never marks a
// notification sent when delivery failed.
func (m *Maintenance) dispatch(ctx context.Context, n models.Notification, kind models.NotificationKind) error {
	now := m.clock.Now()

	var payload notify.Payload
	if n.BookingID != nil {
		b, err := m.db.Queries.GetBooking(ctx, *n.BookingID)
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if kind == models.KindReminder {
			if err := reminderDue(b, now); err != nil {
				return err
			}
		}
		resource, err := m.db.Queries.GetResource(ctx, b.ResourceID)
		if err != nil {
			return fmt.Errorf("load resource: %w", err)
		}
		payload = notify.Payload{
			BookingID:    b.ID,
			ResourceName: resource.Name,
			Start:        b.StartTime,
			End:          b.EndTime,
			Notes:        b.Notes,
		}
	} else if kind == models.KindReminder {
		return errExpired
	}

	user, err := m.db.Queries.GetUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	recipient := notify.Recipient{
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Phone:   user.Phone,
		Channel: n.Channel,
	}
	if err := m.notifier.Send(ctx, recipient, kind, payload); err != nil {
		return err
	}

	return m.db.RunInTx(ctx, func(tx *db.DB) error {
		ok, err := tx.Queries.MarkNotificationSent(ctx, n.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			log.Ctx(ctx).Warn().Int64("notification_id", n.ID).Msg("Notification already marked sent")
		}
		return nil
	})
}

// reminderDue returns nil when b is active and starts within the reminder lead
// from now. A reminder for an inactive or started booking is expired.
func reminderDue(b models.Booking, now time.Time) error {
	if b.Status != models.StatusPending && b.Status != models.StatusConfirmed {
		return errExpired
	}
	if b.StartTime.Before(now) {
		return errExpired
	}
	if b.StartTime.After(now.Add(booking.ReminderLead)) {
		return errNotDue
	}
	return nil
}

// dropExpired deletes a reminder that can never be sent so later dispatch runs
// stop reading it.
func (m *Maintenance) dropExpired(ctx context.Context, n models.Notification) {
	logger := log.Ctx(ctx)
	err := m.db.RunInTx(ctx, func(tx *db.DB) error {
		_, err := tx.Queries.DeleteUnsentNotification(ctx, n.ID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Int64("notification_id", n.ID).Msg("Failed to drop expired reminder")
		return
	}
	m.metrics.ObserveNotification(string(models.KindReminder), "expired")
	logger.Debug().Int64("notification_id", n.ID).Msg("Dropped expired reminder")
}

// PurgeOldNotifications deletes notifications created over 30 days ago.
func (m *Maintenance) PurgeOldNotifications(ctx context.Context) (RunResult, error) {
	removed, err := m.db.Queries.DeleteNotificationsCreatedBefore(ctx, m.clock.Now().Add(-notificationMaxAge))
	if err != nil {
		return RunResult{}, err
	}
	log.Ctx(ctx).Debug().Int64("deleted_notifications", removed).Msg("Purged old notifications")
	return RunResult{Processed: int(removed)}, nil
}
