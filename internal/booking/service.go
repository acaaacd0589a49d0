package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/availability"
	"github.com/codr1/slotwise/internal/clock"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/models"
)

type Service struct {
	db    *db.DB
	clock clock.Clock
	locks *resourceLocks
}

func NewService(database *db.DB, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{Location: database.Location()}
	}
	return &Service{
		db:    database,
		clock: clk,
		locks: newResourceLocks(),
	}
}

type CreateRequest struct {
	ResourceID int64     `json:"resourceId"`
	UserID     int64     `json:"userId"`
	StartTime  time.Time `json:"startTime"`
	Notes      string    `json:"notes"`
}

func (r CreateRequest) Validate() error {
	if r.ResourceID <= 0 {
		return &models.ValidationError{Field: "resource_id", Message: "resource_id must be a positive integer"}
	}
	if r.UserID <= 0 {
		return &models.ValidationError{Field: "user_id", Message: "user_id must be a positive integer"}
	}
	if r.StartTime.IsZero() {
		return &models.ValidationError{Field: "start_time", Message: "start_time is required"}
	}
	return nil
}

// Create books the resource for one service duration starting at
// req.StartTime. The start is read in the business timezone whatever offset
// the caller used. The availability check and the insert run under the
// resource's lock inside a single transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (models.Booking, error) {
	if err := req.Validate(); err != nil {
		return models.Booking{}, err
	}
	start := req.StartTime.In(s.db.Location())
	now := s.clock.Now()
	if !start.After(now) {
		return models.Booking{}, &models.ValidationError{Field: "start_time", Message: "start_time must be in the future"}
	}

	unlock := s.locks.Lock(req.ResourceID)
	defer unlock()

	var created models.Booking
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		if _, err := tx.Queries.GetUser(ctx, req.UserID); err != nil {
			return err
		}
		resource, err := tx.Queries.GetResource(ctx, req.ResourceID)
		if err != nil {
			return err
		}

		b := models.Booking{
			ResourceID: resource.ID,
			UserID:     req.UserID,
			StartTime:  start,
			EndTime:    start.Add(resource.Duration()),
			Status:     models.StatusPending,
			Notes:      req.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		var ok bool
		created, ok, err = s.insertIfAvailable(ctx, tx, b)
		if err != nil {
			return err
		}
		if !ok {
			return &models.ConflictError{ResourceID: b.ResourceID, Start: b.StartTime, End: b.EndTime}
		}

		_, err = tx.Queries.CreateNotification(ctx, models.Notification{
			UserID:    created.UserID,
			Title:     models.TitleCreated,
			Content:   describe(models.KindCreated, created),
			Channel:   models.ChannelSystem,
			BookingID: &created.ID,
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}

	log.Ctx(ctx).Info().
		Int64("booking_id", created.ID).
		Int64("resource_id", created.ResourceID).
		Time("start_time", created.StartTime).
		Msg("Booking created")
	return created, nil
}

// insertIfAvailable stores b when its interval is free on the resource. The
// caller must hold the resource lock and pass a transaction-bound DB.
func (s *Service) insertIfAvailable(ctx context.Context, tx *db.DB, b models.Booking) (models.Booking, bool, error) {
	engine := availability.NewEngine(tx.Queries, s.clock)
	ok, err := engine.IsSlotAvailable(ctx, b.ResourceID, b.StartTime, b.EndTime)
	if err != nil || !ok {
		return models.Booking{}, false, err
	}
	created, err := tx.Queries.CreateBooking(ctx, b)
	if err != nil {
		return models.Booking{}, false, err
	}
	return created, true, nil
}

// UpdateStatus moves a booking through the lifecycle and enqueues the
// notifications the transition emits.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status models.BookingStatus) (models.Booking, error) {
	var updated models.Booking
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := tx.Queries.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		updated, err = s.applyTransition(ctx, tx, current, status)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}

	log.Ctx(ctx).Info().
		Int64("booking_id", id).
		Str("status", string(updated.Status)).
		Msg("Booking status updated")
	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, id int64) (models.Booking, error) {
	return s.UpdateStatus(ctx, id, models.StatusConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id int64) (models.Booking, error) {
	return s.UpdateStatus(ctx, id, models.StatusCancelled)
}

func (s *Service) Complete(ctx context.Context, id int64) (models.Booking, error) {
	return s.UpdateStatus(ctx, id, models.StatusCompleted)
}

// applyTransition persists a lifecycle step for b and writes its effects to
// the notification outbox.
func (s *Service) applyTransition(ctx context.Context, tx *db.DB, b models.Booking, to models.BookingStatus) (models.Booking, error) {
	now := s.clock.Now()
	next, effects, err := Transition(b, to, now)
	if err != nil {
		return models.Booking{}, err
	}

	ok, err := tx.Queries.UpdateBookingStatus(ctx, db.UpdateBookingStatusParams{
		ID:             b.ID,
		Status:         next.Status,
		ExpectedStatus: b.Status,
		UpdatedAt:      now,
	})
	if err != nil {
		return models.Booking{}, err
	}
	if !ok {
		return models.Booking{}, fmt.Errorf("booking %d changed status concurrently", b.ID)
	}

	for _, effect := range effects {
		if _, err := tx.Queries.CreateNotification(ctx, models.Notification{
			UserID:    next.UserID,
			Title:     effect.Kind.Title(),
			Content:   describe(effect.Kind, next),
			Channel:   models.ChannelEmail,
			BookingID: &next.ID,
			CreatedAt: now,
		}); err != nil {
			return models.Booking{}, err
		}
	}
	return next, nil
}

func (s *Service) UpdateNotes(ctx context.Context, id int64, notes string) (models.Booking, error) {
	var updated models.Booking
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		if err := tx.Queries.UpdateBookingNotes(ctx, id, notes, s.clock.Now()); err != nil {
			return err
		}
		var err error
		updated, err = tx.Queries.GetBooking(ctx, id)
		return err
	})
	if err != nil {
		return models.Booking{}, err
	}
	return updated, nil
}

// Delete removes a booking regardless of status. Its notifications go with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.db.Queries.DeleteBooking(ctx, id); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Int64("booking_id", id).Msg("Booking deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (models.Booking, error) {
	return s.db.Queries.GetBooking(ctx, id)
}

// ListByUser returns the user's bookings, optionally restricted to statuses.
func (s *Service) ListByUser(ctx context.Context, userID int64, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return s.db.Queries.ListBookings(ctx, models.BookingFilter{UserID: userID, Statuses: statuses})
}

// ListByProvider returns bookings on every resource the provider owns.
func (s *Service) ListByProvider(ctx context.Context, providerID int64, statuses ...models.BookingStatus) ([]models.Booking, error) {
	return s.db.Queries.ListBookings(ctx, models.BookingFilter{ProviderID: providerID, Statuses: statuses})
}

func (s *Service) ListByStatus(ctx context.Context, status models.BookingStatus) ([]models.Booking, error) {
	return s.db.Queries.ListBookings(ctx, models.BookingFilter{Statuses: []models.BookingStatus{status}})
}

// describe renders the stored body of a booking notification.
func describe(kind models.NotificationKind, b models.Booking) string {
	when := b.StartTime.Format("Mon Jan 2, 2006 15:04")
	switch kind {
	case models.KindCreated:
		return fmt.Sprintf("Booking #%d requested for %s.", b.ID, when)
	case models.KindConfirmation:
		return fmt.Sprintf("Your booking #%d on %s is confirmed.", b.ID, when)
	case models.KindCancellation:
		return fmt.Sprintf("Your booking #%d on %s has been cancelled.", b.ID, when)
	case models.KindReminder:
		return fmt.Sprintf("Reminder: booking #%d starts %s.", b.ID, when)
	}
	return fmt.Sprintf("Booking #%d on %s.", b.ID, when)
}
