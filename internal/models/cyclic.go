// internal/models/cyclic.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type RecurrencePattern string

const (
	PatternWeekly  RecurrencePattern = "WEEKLY"
	PatternMonthly RecurrencePattern = "MONTHLY"
)

func ParseRecurrencePattern(raw string) (RecurrencePattern, error) {
	pattern := RecurrencePattern(strings.ToUpper(strings.TrimSpace(raw)))
	switch pattern {
	case PatternWeekly, PatternMonthly:
		return pattern, nil
	}
	return "", &ValidationError{Field: "pattern", Message: fmt.Sprintf("unknown recurrence pattern %q", raw)}
}

// CyclicBooking is the root of a recurring booking. It owns the creation of its
// child bookings; ChildIDs is the one-way ownership link.
type CyclicBooking struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"userId"`
	ResourceID int64             `json:"resourceId"`
	StartDate  time.Time         `json:"startDate"`
	EndDate    *time.Time        `json:"endDate,omitempty"`
	Pattern    RecurrencePattern `json:"pattern"`
	DayOfWeek  *time.Weekday     `json:"dayOfWeek,omitempty"`
	DayOfMonth *int              `json:"dayOfMonth,omitempty"`
	StartTime  TimeOfDay         `json:"startTime"`
	EndTime    TimeOfDay         `json:"endTime"`
	Status     BookingStatus     `json:"status"`
	Notes      string            `json:"notes"`
	ChildIDs   []int64           `json:"childIds"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// DefaultRecurrenceHorizonMonths bounds open-ended recurrences.
const DefaultRecurrenceHorizonMonths = 3

// EffectiveEndDate is EndDate, or StartDate plus the default horizon when unset.
func (c CyclicBooking) EffectiveEndDate() time.Time {
	if c.EndDate != nil {
		return *c.EndDate
	}
	return c.StartDate.AddDate(0, DefaultRecurrenceHorizonMonths, 0)
}

// Validate checks the time-of-day and date fields. Pattern parameters are
// checked by the recurrence package.
func (c CyclicBooking) Validate() error {
	if c.UserID <= 0 {
		return &ValidationError{Field: "user_id", Message: "user_id must be a positive integer"}
	}
	if c.ResourceID <= 0 {
		return &ValidationError{Field: "resource_id", Message: "resource_id must be a positive integer"}
	}
	if c.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start_date is required"}
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return &ValidationError{Field: "end_date", Message: "end_date must not be before start_date"}
	}
	if c.EndTime <= c.StartTime {
		return &ValidationError{Field: "end_time", Message: "end_time must be after start_time"}
	}
	return nil
}
