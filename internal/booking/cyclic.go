package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/recurrence"
)

// Orchestrator creates and maintains recurring bookings. Child bookings are
// written through the same Service so they share its resource locks.
type Orchestrator struct {
	bookings *Service
}

func NewOrchestrator(bookings *Service) *Orchestrator {
	return &Orchestrator{bookings: bookings}
}

type CyclicRequest struct {
	UserID     int64                    `json:"userId"`
	ResourceID int64                    `json:"resourceId"`
	StartDate  time.Time                `json:"startDate"`
	EndDate    *time.Time               `json:"endDate,omitempty"`
	Pattern    models.RecurrencePattern `json:"pattern"`
	DayOfWeek  *time.Weekday            `json:"dayOfWeek,omitempty"`
	DayOfMonth *int                     `json:"dayOfMonth,omitempty"`
	StartTime  models.TimeOfDay         `json:"startTime"`
	EndTime    models.TimeOfDay         `json:"endTime"`
	Notes      string                   `json:"notes"`
}

// rollbackTimeout bounds the cleanup of a half-generated recurring booking,
// which runs after the request context may already be done.
const rollbackTimeout = 10 * time.Second

// CreateCyclic stores a PENDING recurring booking and generates its
// instances. Dates that are not free are skipped. Start and end dates are
// calendar dates in the business timezone. When generation fails the root
// and any children already written are removed.
func (o *Orchestrator) CreateCyclic(ctx context.Context, req CyclicRequest) (models.CyclicBooking, error) {
	loc := o.bookings.db.Location()
	now := o.bookings.clock.Now()
	root := models.CyclicBooking{
		UserID:     req.UserID,
		ResourceID: req.ResourceID,
		StartDate:  models.DateIn(req.StartDate, loc),
		Pattern:    req.Pattern,
		DayOfWeek:  req.DayOfWeek,
		DayOfMonth: req.DayOfMonth,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Status:     models.StatusPending,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.EndDate != nil {
		end := models.DateIn(*req.EndDate, loc)
		root.EndDate = &end
	}
	if err := root.Validate(); err != nil {
		return models.CyclicBooking{}, err
	}
	if err := recurrence.Validate(recurrence.FromCyclic(root)); err != nil {
		return models.CyclicBooking{}, err
	}

	err := o.bookings.db.RunInTx(ctx, func(tx *db.DB) error {
		if _, err := tx.Queries.GetUser(ctx, root.UserID); err != nil {
			return err
		}
		if _, err := tx.Queries.GetResource(ctx, root.ResourceID); err != nil {
			return err
		}
		var err error
		root, err = tx.Queries.CreateCyclicBooking(ctx, root)
		return err
	})
	if err != nil {
		return models.CyclicBooking{}, err
	}

	children, err := o.GenerateInstances(ctx, root)
	if err != nil {
		o.discard(ctx, root.ID, err)
		return models.CyclicBooking{}, err
	}
	root.ChildIDs = make([]int64, 0, len(children))
	for _, child := range children {
		root.ChildIDs = append(root.ChildIDs, child.ID)
	}

	log.Ctx(ctx).Info().
		Int64("cyclic_booking_id", root.ID).
		Str("pattern", string(root.Pattern)).
		Int("instances", len(children)).
		Msg("Cyclic booking created")
	return root, nil
}

// discard removes a root whose instances could not all be generated. It runs
// on a context detached from ctx so a cancelled request still cleans up.
func (o *Orchestrator) discard(ctx context.Context, rootID int64, cause error) {
	logger := log.Ctx(ctx).With().Int64("cyclic_booking_id", rootID).Logger()
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	cleanupCtx = logger.WithContext(cleanupCtx)

	if err := o.DeleteCyclic(cleanupCtx, rootID); err != nil {
		logger.Error().Err(err).AnErr("cause", cause).Msg("Failed to remove partially generated cyclic booking")
		return
	}
	logger.Warn().Err(cause).Msg("Removed partially generated cyclic booking")
}

// GenerateInstances books every expanded date of root that is free and
// returns the children it created. Each date is checked and inserted
// atomically under the resource lock; taken dates and dates that have
// already started are dropped.
func (o *Orchestrator) GenerateInstances(ctx context.Context, root models.CyclicBooking) ([]models.Booking, error) {
	resource, err := o.bookings.db.Queries.GetResource(ctx, root.ResourceID)
	if err != nil {
		return nil, err
	}
	dates, err := recurrence.Expand(recurrence.FromCyclic(root), root.EffectiveEndDate())
	if err != nil {
		return nil, err
	}

	logger := log.Ctx(ctx).With().Int64("cyclic_booking_id", root.ID).Logger()
	now := o.bookings.clock.Now()
	children := make([]models.Booking, 0, len(dates))
	for _, date := range dates {
		start := root.StartTime.On(date)
		if !start.After(now) {
			logger.Debug().Time("start_time", start).Msg("Skipping past recurrence date")
			continue
		}
		child, ok, err := o.createInstance(ctx, root, start, start.Add(resource.Duration()))
		if err != nil {
			return children, err
		}
		if !ok {
			logger.Debug().Time("start_time", start).Msg("Skipping unavailable recurrence date")
			continue
		}
		children = append(children, child)
	}
	return children, nil
}

func (o *Orchestrator) createInstance(ctx context.Context, root models.CyclicBooking, start, end time.Time) (models.Booking, bool, error) {
	unlock := o.bookings.locks.Lock(root.ResourceID)
	defer unlock()

	now := o.bookings.clock.Now()
	var (
		child models.Booking
		ok    bool
	)
	err := o.bookings.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		child, ok, err = o.bookings.insertIfAvailable(ctx, tx, models.Booking{
			ResourceID:         root.ResourceID,
			UserID:             root.UserID,
			StartTime:          start,
			EndTime:            end,
			Status:             models.StatusPending,
			Notes:              root.Notes,
			CreatedAt:          now,
			UpdatedAt:          now,
			ParentRecurrenceID: &root.ID,
		})
		return err
	})
	return child, ok, err
}

// UpdateCyclicStatus confirms or cancels a recurring booking. Children still
// PENDING move through the lifecycle with its notifications; the rest keep
// their status.
func (o *Orchestrator) UpdateCyclicStatus(ctx context.Context, id int64, status models.BookingStatus) (models.CyclicBooking, error) {
	if status != models.StatusConfirmed && status != models.StatusCancelled {
		return models.CyclicBooking{}, &models.ValidationError{Field: "status", Message: "status must be CONFIRMED or CANCELLED"}
	}

	var root models.CyclicBooking
	err := o.bookings.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		if root, err = tx.Queries.GetCyclicBooking(ctx, id); err != nil {
			return err
		}
		children, err := tx.Queries.ListBookingsByParent(ctx, id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.Status != models.StatusPending {
				continue
			}
			if _, err := o.bookings.applyTransition(ctx, tx, child, status); err != nil {
				return err
			}
		}

		now := o.bookings.clock.Now()
		if err := tx.Queries.UpdateCyclicBookingStatus(ctx, id, status, now); err != nil {
			return err
		}
		root.Status = status
		root.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.CyclicBooking{}, err
	}

	log.Ctx(ctx).Info().
		Int64("cyclic_booking_id", id).
		Str("status", string(status)).
		Msg("Cyclic booking status updated")
	return root, nil
}

// UpdateCyclicNotes overwrites the notes of the root and of every child.
func (o *Orchestrator) UpdateCyclicNotes(ctx context.Context, id int64, notes string) (models.CyclicBooking, error) {
	var root models.CyclicBooking
	err := o.bookings.db.RunInTx(ctx, func(tx *db.DB) error {
		now := o.bookings.clock.Now()
		if err := tx.Queries.UpdateCyclicBookingNotes(ctx, id, notes, now); err != nil {
			return err
		}
		children, err := tx.Queries.ListBookingsByParent(ctx, id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := tx.Queries.UpdateBookingNotes(ctx, child.ID, notes, now); err != nil {
				return err
			}
		}
		root, err = tx.Queries.GetCyclicBooking(ctx, id)
		return err
	})
	if err != nil {
		return models.CyclicBooking{}, err
	}
	return root, nil
}

// DeleteCyclic removes the root and all of its children whatever their status.
func (o *Orchestrator) DeleteCyclic(ctx context.Context, id int64) error {
	var removed int64
	err := o.bookings.db.RunInTx(ctx, func(tx *db.DB) error {
		if _, err := tx.Queries.GetCyclicBooking(ctx, id); err != nil {
			return err
		}
		var err error
		if removed, err = tx.Queries.DeleteBookingsByParent(ctx, id); err != nil {
			return err
		}
		return tx.Queries.DeleteCyclicBooking(ctx, id)
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().
		Int64("cyclic_booking_id", id).
		Int64("children_deleted", removed).
		Msg("Cyclic booking deleted")
	return nil
}

func (o *Orchestrator) GetCyclic(ctx context.Context, id int64) (models.CyclicBooking, error) {
	return o.bookings.db.Queries.GetCyclicBooking(ctx, id)
}

func (o *Orchestrator) ListCyclicByUser(ctx context.Context, userID int64) ([]models.CyclicBooking, error) {
	return o.bookings.db.Queries.ListCyclicBookingsByUser(ctx, userID)
}
