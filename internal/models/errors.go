// internal/models/errors.go
package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("interval unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown entity id.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports that an interval is outside availability or already taken.
type ConflictError struct {
	ResourceID int64
	Start      time.Time
	End        time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %d is unavailable from %s to %s",
		e.ResourceID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InvalidTransitionError reports a status change the lifecycle does not allow.
type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition booking from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }
