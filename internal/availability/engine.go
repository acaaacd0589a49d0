// Package availability turns weekly availability windows into bookable slots
// and answers conflict questions for a resource.
package availability

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/clock"
	"github.com/codr1/slotwise/internal/models"
)

// Queries is the read access the engine needs from storage.
type Queries interface {
	BookingQueries
	GetResource(ctx context.Context, id int64) (models.Resource, error)
	ListAvailabilityWindows(ctx context.Context, resourceID int64) ([]models.AvailabilityWindow, error)
}

type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Engine struct {
	queries  Queries
	detector *Detector
	clock    clock.Clock
}

func NewEngine(queries Queries, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		queries:  queries,
		detector: NewDetector(queries),
		clock:    clk,
	}
}

// Detector exposes the conflict detector bound to the engine's queries.
func (e *Engine) Detector() *Detector {
	return e.detector
}

// AvailableSlots returns the free duration-sized slots of resourceID on date,
// in chronological order. Slots that start at or before now are dropped.
func (e *Engine) AvailableSlots(ctx context.Context, resourceID int64, date time.Time) ([]Slot, error) {
	resource, err := e.queries.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	windows, err := e.windowsFor(ctx, resourceID, date.Weekday())
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	duration := resource.Duration()
	if duration <= 0 {
		return nil, &models.ValidationError{Field: "duration_minutes", Message: fmt.Sprintf("resource %d has no service duration", resourceID)}
	}

	dayStart := models.StartOfDay(date)
	dayEnd := dayStart.AddDate(0, 0, 1)
	booked, err := e.detector.Load(ctx, resourceID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	blackouts, err := e.detector.LoadBlackouts(ctx, resource.ProviderID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	slots := make([]Slot, 0)
	for _, window := range windows {
		windowEnd := window.EndTime.On(date)
		for start := window.StartTime.On(date); !start.Add(duration).After(windowEnd); start = start.Add(duration) {
			end := start.Add(duration)
			if booked.Overlaps(start, end) || blackouts.Overlaps(start, end) {
				continue
			}
			if !start.After(now) {
				continue
			}
			slots = append(slots, Slot{Start: start, End: end})
		}
	}

	slices.SortFunc(slots, func(a, b Slot) int {
		return a.Start.Compare(b.Start)
	})

	log.Ctx(ctx).Debug().
		Int64("resource_id", resourceID).
		Str("date", dayStart.Format(time.DateOnly)).
		Int("slot_count", len(slots)).
		Msg("Computed available slots")
	return slots, nil
}

// AvailableDates returns every date in [today, today+horizonDays] whose weekday
// has at least one availability window. Bookings are not consulted.
func (e *Engine) AvailableDates(ctx context.Context, resourceID int64, horizonDays int) ([]time.Time, error) {
	if horizonDays < 0 {
		return nil, &models.ValidationError{Field: "horizon_days", Message: "horizon_days must not be negative"}
	}
	if _, err := e.queries.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	windows, err := e.queries.ListAvailabilityWindows(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list availability windows for resource %d: %w", resourceID, err)
	}

	openDays := make(map[time.Weekday]struct{}, len(windows))
	for _, window := range windows {
		openDays[window.DayOfWeek] = struct{}{}
	}

	today := models.StartOfDay(e.clock.Now())
	dates := make([]time.Time, 0)
	for offset := 0; offset <= horizonDays; offset++ {
		day := today.AddDate(0, 0, offset)
		if _, ok := openDays[day.Weekday()]; ok {
			dates = append(dates, day)
		}
	}
	return dates, nil
}

// IsSlotAvailable reports whether [start,end) lies inside one availability
// window of resourceID and conflicts with neither an active booking nor a
// provider exception period.
func (e *Engine) IsSlotAvailable(ctx context.Context, resourceID int64, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, &models.ValidationError{Field: "end_time", Message: "end_time must be after start_time"}
	}
	resource, err := e.queries.GetResource(ctx, resourceID)
	if err != nil {
		return false, err
	}
	windows, err := e.windowsFor(ctx, resourceID, start.Weekday())
	if err != nil {
		return false, err
	}

	contained := false
	for _, window := range windows {
		if window.Contains(start, end) {
			contained = true
			break
		}
	}
	if !contained {
		return false, nil
	}

	overlaps, err := e.detector.Overlaps(ctx, resourceID, start, end)
	if err != nil {
		return false, err
	}
	if overlaps {
		return false, nil
	}

	blackedOut, err := e.detector.BlackedOut(ctx, resource.ProviderID, start, end)
	if err != nil {
		return false, err
	}
	return !blackedOut, nil
}

func (e *Engine) windowsFor(ctx context.Context, resourceID int64, day time.Weekday) ([]models.AvailabilityWindow, error) {
	all, err := e.queries.ListAvailabilityWindows(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list availability windows for resource %d: %w", resourceID, err)
	}
	windows := make([]models.AvailabilityWindow, 0, len(all))
	for _, window := range all {
		if window.DayOfWeek == day {
			windows = append(windows, window)
		}
	}
	return windows, nil
}
