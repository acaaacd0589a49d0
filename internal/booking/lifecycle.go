// Package booking owns booking state changes: creation under per-resource
// serialization, lifecycle transitions with their notification effects, and
// orchestration of recurring bookings.
package booking

import (
	"time"

	"github.com/codr1/slotwise/internal/models"
)

// ReminderLead is how far ahead of a booking's start a reminder is due.
const ReminderLead = 24 * time.Hour

// Effect is a notification a transition asks to be enqueued.
type Effect struct {
	Kind models.NotificationKind
}

type transitionKey struct {
	from models.BookingStatus
	to   models.BookingStatus
}

// transitions is the complete set of allowed status changes and the
// notifications each one always emits.
var transitions = map[transitionKey][]models.NotificationKind{
	{models.StatusPending, models.StatusConfirmed}:   {models.KindConfirmation},
	{models.StatusPending, models.StatusCancelled}:   {models.KindCancellation},
	{models.StatusConfirmed, models.StatusCancelled}: {models.KindCancellation},
	{models.StatusConfirmed, models.StatusCompleted}: nil,
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to models.BookingStatus) bool {
	_, ok := transitions[transitionKey{from, to}]
	return ok
}

// Transition applies the status change to a copy of b and returns the
// notifications it emits. It performs no I/O.
func Transition(b models.Booking, to models.BookingStatus, now time.Time) (models.Booking, []Effect, error) {
	kinds, ok := transitions[transitionKey{b.Status, to}]
	if !ok {
		return b, nil, &models.InvalidTransitionError{From: b.Status, To: to}
	}

	effects := make([]Effect, 0, len(kinds)+1)
	for _, kind := range kinds {
		effects = append(effects, Effect{Kind: kind})
	}
	if to == models.StatusConfirmed && b.StartTime.After(now.Add(ReminderLead)) {
		effects = append(effects, Effect{Kind: models.KindReminder})
	}

	b.Status = to
	b.UpdatedAt = now
	return b, effects, nil
}
