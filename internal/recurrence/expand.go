// Package recurrence expands recurring booking descriptors into calendar dates.
package recurrence

import (
	"fmt"
	"time"

	"github.com/codr1/slotwise/internal/models"
)

// Descriptor describes when a recurring booking repeats.
type Descriptor struct {
	Pattern    models.RecurrencePattern
	StartDate  time.Time
	EndDate    *time.Time
	DayOfWeek  *time.Weekday
	DayOfMonth *int
}

// FromCyclic builds the descriptor of a recurrence root.
func FromCyclic(root models.CyclicBooking) Descriptor {
	return Descriptor{
		Pattern:    root.Pattern,
		StartDate:  root.StartDate,
		EndDate:    root.EndDate,
		DayOfWeek:  root.DayOfWeek,
		DayOfMonth: root.DayOfMonth,
	}
}

// Validate checks the pattern-specific parameters of d.
func Validate(d Descriptor) error {
	if d.StartDate.IsZero() {
		return &models.ValidationError{Field: "start_date", Message: "start_date is required"}
	}
	switch d.Pattern {
	case models.PatternWeekly:
		if d.DayOfWeek == nil {
			return &models.ValidationError{Field: "day_of_week", Message: "day_of_week is required for WEEKLY recurrence"}
		}
		if *d.DayOfWeek < time.Sunday || *d.DayOfWeek > time.Saturday {
			return &models.ValidationError{Field: "day_of_week", Message: "day_of_week must be between 0 and 6"}
		}
	case models.PatternMonthly:
		if d.DayOfMonth == nil || *d.DayOfMonth < 1 || *d.DayOfMonth > 31 {
			return &models.ValidationError{Field: "day_of_month", Message: "day_of_month must be between 1 and 31 for MONTHLY recurrence"}
		}
	default:
		return &models.ValidationError{Field: "pattern", Message: fmt.Sprintf("unsupported recurrence pattern %q", d.Pattern)}
	}
	return nil
}

// Expand returns the ascending dates of d up to and including the effective end.
// The effective end is d.EndDate, or StartDate plus three months when unset,
// clipped to rangeEnd when rangeEnd is non-zero. Dates are midnights in the
// location of d.StartDate.
func Expand(d Descriptor, rangeEnd time.Time) ([]time.Time, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	loc := d.StartDate.Location()
	start := models.StartOfDay(d.StartDate)
	end := start.AddDate(0, models.DefaultRecurrenceHorizonMonths, 0)
	if d.EndDate != nil {
		end = models.StartOfDay(d.EndDate.In(loc))
	}
	if !rangeEnd.IsZero() {
		clip := models.StartOfDay(rangeEnd.In(loc))
		if clip.Before(end) {
			end = clip
		}
	}
	if end.Before(start) {
		return nil, nil
	}

	switch d.Pattern {
	case models.PatternWeekly:
		return expandWeekly(start, end, *d.DayOfWeek), nil
	default:
		return expandMonthly(start, end, *d.DayOfMonth), nil
	}
}

func expandWeekly(start, end time.Time, weekday time.Weekday) []time.Time {
	var dates []time.Time
	for current := start; !current.After(end); current = current.AddDate(0, 0, 1) {
		if current.Weekday() == weekday {
			dates = append(dates, current)
		}
	}
	return dates
}

// expandMonthly scans day by day and jumps to the first of the next month once
// the target day has been passed. Months shorter than dayOfMonth yield nothing.
func expandMonthly(start, end time.Time, dayOfMonth int) []time.Time {
	var dates []time.Time
	current := start
	for !current.After(end) {
		switch {
		case current.Day() == dayOfMonth:
			dates = append(dates, current)
			current = firstOfNextMonth(current)
		case current.Day() > dayOfMonth:
			current = firstOfNextMonth(current)
		default:
			current = current.AddDate(0, 0, 1)
		}
	}
	return dates
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}
