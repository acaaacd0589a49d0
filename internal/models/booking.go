// internal/models/booking.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
	StatusCompleted BookingStatus = "COMPLETED"
)

// ActiveStatuses are the statuses that hold a slot on a resource.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return status, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown booking status %q", raw)}
}

// IsTerminal reports whether no further transitions are possible from s.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type Booking struct {
	ID                 int64         `json:"id"`
	ResourceID         int64         `json:"resourceId"`
	UserID             int64         `json:"userId"`
	StartTime          time.Time     `json:"startTime"`
	EndTime            time.Time     `json:"endTime"`
	Status             BookingStatus `json:"status"`
	Notes              string        `json:"notes"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
	ParentRecurrenceID *int64        `json:"parentRecurrenceId,omitempty"`
}

func (b Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// BookingFilter narrows booking queries. Zero values are ignored.
type BookingFilter struct {
	ResourceID    int64
	UserID        int64
	ProviderID    int64
	Statuses      []BookingStatus
	StartsBefore  *time.Time
	EndsAfter     *time.Time
	EndsBefore    *time.Time
	CreatedBefore *time.Time
}
