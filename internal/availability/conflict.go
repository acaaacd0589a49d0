package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/codr1/slotwise/internal/models"
)

// BookingQueries is the read access the conflict detector needs.
type BookingQueries interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ListExceptionPeriods(ctx context.Context, providerID int64, from, to time.Time) ([]models.ExceptionPeriod, error)
}

// Overlaps is the half-open intersection test for [aStart,aEnd) and [bStart,bEnd).
// Intervals that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Reservations is a snapshot of intervals held on a resource or provider.
type Reservations []Interval

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether any held interval intersects [start,end).
func (r Reservations) Overlaps(start, end time.Time) bool {
	for _, held := range r {
		if Overlaps(held.Start, held.End, start, end) {
			return true
		}
	}
	return false
}

type Detector struct {
	queries BookingQueries
}

func NewDetector(queries BookingQueries) *Detector {
	return &Detector{queries: queries}
}

// Load returns the bookings of resourceID intersecting [from,to) whose status is
// in statuses. An empty statuses list means PENDING and CONFIRMED.
func (d *Detector) Load(ctx context.Context, resourceID int64, from, to time.Time, statuses ...models.BookingStatus) (Reservations, error) {
	if len(statuses) == 0 {
		statuses = models.ActiveStatuses
	}
	bookings, err := d.queries.ListBookings(ctx, models.BookingFilter{
		ResourceID:   resourceID,
		Statuses:     statuses,
		StartsBefore: &to,
		EndsAfter:    &from,
	})
	if err != nil {
		return nil, fmt.Errorf("list bookings for resource %d: %w", resourceID, err)
	}

	held := make(Reservations, 0, len(bookings))
	for _, booking := range bookings {
		if !Overlaps(booking.StartTime, booking.EndTime, from, to) {
			continue
		}
		held = append(held, Interval{Start: booking.StartTime, End: booking.EndTime})
	}
	return held, nil
}

// Overlaps reports whether [start,end) intersects an existing booking of resourceID.
func (d *Detector) Overlaps(ctx context.Context, resourceID int64, start, end time.Time, statuses ...models.BookingStatus) (bool, error) {
	held, err := d.Load(ctx, resourceID, start, end, statuses...)
	if err != nil {
		return false, err
	}
	return held.Overlaps(start, end), nil
}

// LoadBlackouts returns the exception periods of providerID intersecting [from,to).
func (d *Detector) LoadBlackouts(ctx context.Context, providerID int64, from, to time.Time) (Reservations, error) {
	periods, err := d.queries.ListExceptionPeriods(ctx, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list exception periods for provider %d: %w", providerID, err)
	}

	held := make(Reservations, 0, len(periods))
	for _, period := range periods {
		if !Overlaps(period.StartTime, period.EndTime, from, to) {
			continue
		}
		held = append(held, Interval{Start: period.StartTime, End: period.EndTime})
	}
	return held, nil
}

// BlackedOut reports whether [start,end) falls into an exception period of providerID.
func (d *Detector) BlackedOut(ctx context.Context, providerID int64, start, end time.Time) (bool, error) {
	held, err := d.LoadBlackouts(ctx, providerID, start, end)
	if err != nil {
		return false, err
	}
	return held.Overlaps(start, end), nil
}
