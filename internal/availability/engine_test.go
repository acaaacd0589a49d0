package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/testutil"
)

type memQueries struct {
	resources  map[int64]models.Resource
	windows    []models.AvailabilityWindow
	bookings   []models.Booking
	exceptions []models.ExceptionPeriod
}

func (m *memQueries) GetResource(_ context.Context, id int64) (models.Resource, error) {
	resource, ok := m.resources[id]
	if !ok {
		return models.Resource{}, &models.NotFoundError{Entity: "resource", ID: id}
	}
	return resource, nil
}

func (m *memQueries) ListAvailabilityWindows(_ context.Context, resourceID int64) ([]models.AvailabilityWindow, error) {
	var out []models.AvailabilityWindow
	for _, window := range m.windows {
		if window.ResourceID == resourceID {
			out = append(out, window)
		}
	}
	return out, nil
}

func (m *memQueries) ListBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var out []models.Booking
	for _, booking := range m.bookings {
		if filter.ResourceID != 0 && booking.ResourceID != filter.ResourceID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, booking.Status) {
			continue
		}
		out = append(out, booking)
	}
	return out, nil
}

func (m *memQueries) ListExceptionPeriods(_ context.Context, providerID int64, _, _ time.Time) ([]models.ExceptionPeriod, error) {
	var out []models.ExceptionPeriod
	for _, period := range m.exceptions {
		if period.ProviderID == providerID {
			out = append(out, period)
		}
	}
	return out, nil
}

func containsStatus(statuses []models.BookingStatus, status models.BookingStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// 2024-03-04 is a Monday.
var monday = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return models.NewTimeOfDay(hour, minute).On(day)
}

func newMondayQueries() *memQueries {
	return &memQueries{
		resources: map[int64]models.Resource{
			1: {ID: 1, ProviderID: 10, Name: "Consultation", DurationMinutes: 60},
		},
		windows: []models.AvailabilityWindow{
			{ID: 1, ResourceID: 1, DayOfWeek: time.Monday, StartTime: models.NewTimeOfDay(9, 0), EndTime: models.NewTimeOfDay(17, 0)},
		},
	}
}

func TestAvailableSlotsFullDay(t *testing.T) {
	queries := newMondayQueries()
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
	for i, slot := range slots {
		wantStart := at(monday, 9+i, 0)
		if !slot.Start.Equal(wantStart) || !slot.End.Equal(wantStart.Add(time.Hour)) {
			t.Fatalf("slot %d = %s-%s, want start %s", i, slot.Start, slot.End, wantStart)
		}
	}
}

func TestAvailableSlotsExcludesPendingBooking(t *testing.T) {
	queries := newMondayQueries()
	queries.bookings = []models.Booking{
		{ID: 1, ResourceID: 1, StartTime: at(monday, 10, 0), EndTime: at(monday, 11, 0), Status: models.StatusPending},
	}
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	for _, slot := range slots {
		if slot.Start.Equal(at(monday, 10, 0)) {
			t.Fatal("10:00-11:00 should be excluded")
		}
	}
}

func TestAvailableSlotsIgnoresInactiveBookings(t *testing.T) {
	queries := newMondayQueries()
	queries.bookings = []models.Booking{
		{ID: 1, ResourceID: 1, StartTime: at(monday, 10, 0), EndTime: at(monday, 11, 0), Status: models.StatusCancelled},
		{ID: 2, ResourceID: 1, StartTime: at(monday, 12, 0), EndTime: at(monday, 13, 0), Status: models.StatusCompleted},
	}
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
}

func TestAvailableSlotsDropsPastAndCurrentSlots(t *testing.T) {
	queries := newMondayQueries()
	engine := NewEngine(queries, testutil.NewClock(at(monday, 11, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 5 {
		t.Fatalf("expected 5 slots after 11:00, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(monday, 12, 0)) {
		t.Fatalf("first slot = %s, want 12:00", slots[0].Start)
	}
}

func TestAvailableSlotsMergesWindowsChronologically(t *testing.T) {
	queries := newMondayQueries()
	queries.resources[1] = models.Resource{ID: 1, ProviderID: 10, DurationMinutes: 45}
	queries.windows = []models.AvailabilityWindow{
		{ResourceID: 1, DayOfWeek: time.Monday, StartTime: models.NewTimeOfDay(14, 0), EndTime: models.NewTimeOfDay(16, 0)},
		{ResourceID: 1, DayOfWeek: time.Monday, StartTime: models.NewTimeOfDay(9, 0), EndTime: models.NewTimeOfDay(10, 30)},
	}
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}

	want := []time.Time{at(monday, 9, 0), at(monday, 9, 45), at(monday, 14, 0), at(monday, 14, 45)}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(slots), slots)
	}
	for i, slot := range slots {
		if !slot.Start.Equal(want[i]) {
			t.Fatalf("slot %d start = %s, want %s", i, slot.Start, want[i])
		}
		if slot.End.Sub(slot.Start) != 45*time.Minute {
			t.Fatalf("slot %d has duration %s", i, slot.End.Sub(slot.Start))
		}
		contained := false
		for _, window := range queries.windows {
			if window.Contains(slot.Start, slot.End) {
				contained = true
			}
		}
		if !contained {
			t.Fatalf("slot %d escapes every window", i)
		}
	}
}

func TestAvailableSlotsHonorsExceptionPeriods(t *testing.T) {
	queries := newMondayQueries()
	queries.exceptions = []models.ExceptionPeriod{
		{ProviderID: 10, StartTime: at(monday, 12, 30), EndTime: at(monday, 14, 0), Description: "Dentist"},
	}
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
}

func TestAvailableSlotsEmptyWithoutWindows(t *testing.T) {
	queries := newMondayQueries()
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	slots, err := engine.AvailableSlots(context.Background(), 1, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if slots == nil || len(slots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %v", slots)
	}
}

func TestAvailableSlotsUnknownResource(t *testing.T) {
	engine := NewEngine(newMondayQueries(), testutil.NewClock(at(monday, 7, 0)))

	_, err := engine.AvailableSlots(context.Background(), 99, monday)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAvailableDates(t *testing.T) {
	queries := newMondayQueries()
	queries.windows = append(queries.windows, models.AvailabilityWindow{
		ResourceID: 1, DayOfWeek: time.Wednesday, StartTime: models.NewTimeOfDay(9, 0), EndTime: models.NewTimeOfDay(12, 0),
	})
	// A booking covering the whole Monday does not matter for the coarse check.
	queries.bookings = []models.Booking{
		{ResourceID: 1, StartTime: at(monday, 9, 0), EndTime: at(monday, 17, 0), Status: models.StatusConfirmed},
	}
	engine := NewEngine(queries, testutil.NewClock(at(monday, 18, 0)))

	dates, err := engine.AvailableDates(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("AvailableDates: %v", err)
	}
	want := []time.Time{monday, monday.AddDate(0, 0, 2), monday.AddDate(0, 0, 7)}
	if len(dates) != len(want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("date %d = %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestIsSlotAvailable(t *testing.T) {
	queries := newMondayQueries()
	queries.bookings = []models.Booking{
		{ResourceID: 1, StartTime: at(monday, 10, 0), EndTime: at(monday, 11, 0), Status: models.StatusConfirmed},
	}
	engine := NewEngine(queries, testutil.NewClock(at(monday, 7, 0)))

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{name: "free", start: at(monday, 9, 0), end: at(monday, 10, 0), want: true},
		{name: "touching_after", start: at(monday, 11, 0), end: at(monday, 12, 0), want: true},
		{name: "overlapping", start: at(monday, 10, 30), end: at(monday, 11, 30), want: false},
		{name: "before_window", start: at(monday, 8, 30), end: at(monday, 9, 30), want: false},
		{name: "after_window", start: at(monday, 16, 30), end: at(monday, 17, 30), want: false},
		{name: "wrong_weekday", start: at(monday.AddDate(0, 0, 1), 9, 0), end: at(monday.AddDate(0, 0, 1), 10, 0), want: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := engine.IsSlotAvailable(context.Background(), 1, test.start, test.end)
			if err != nil {
				t.Fatalf("IsSlotAvailable: %v", err)
			}
			if got != test.want {
				t.Fatalf("IsSlotAvailable(%s, %s) = %t, want %t", test.start, test.end, got, test.want)
			}
		})
	}

	if _, err := engine.IsSlotAvailable(context.Background(), 1, at(monday, 10, 0), at(monday, 9, 0)); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for inverted interval, got %v", err)
	}
}

func TestOverlapsIsSymmetricAndHalfOpen(t *testing.T) {
	base := at(monday, 9, 0)
	intervals := []Interval{
		{Start: base, End: base.Add(time.Hour)},
		{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)},
		{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)},
		{Start: base.Add(-time.Hour), End: base.Add(3 * time.Hour)},
		{Start: base.Add(5 * time.Hour), End: base.Add(6 * time.Hour)},
	}

	for i, a := range intervals {
		for j, b := range intervals {
			if Overlaps(a.Start, a.End, b.Start, b.End) != Overlaps(b.Start, b.End, a.Start, a.End) {
				t.Fatalf("Overlaps not symmetric for %d and %d", i, j)
			}
		}
	}
	if Overlaps(intervals[0].Start, intervals[0].End, intervals[2].Start, intervals[2].End) {
		t.Fatal("touching intervals must not overlap")
	}
	if !Overlaps(intervals[0].Start, intervals[0].End, intervals[1].Start, intervals[1].End) {
		t.Fatal("partially overlapping intervals must overlap")
	}
	if !Overlaps(intervals[3].Start, intervals[3].End, intervals[1].Start, intervals[1].End) {
		t.Fatal("containing interval must overlap")
	}
}

func TestDetectorOverlapsRespectsStatuses(t *testing.T) {
	queries := newMondayQueries()
	queries.bookings = []models.Booking{
		{ResourceID: 1, StartTime: at(monday, 10, 0), EndTime: at(monday, 11, 0), Status: models.StatusCompleted},
	}
	detector := NewDetector(queries)

	overlaps, err := detector.Overlaps(context.Background(), 1, at(monday, 10, 0), at(monday, 11, 0))
	if err != nil {
		t.Fatalf("Overlaps: %v", err)
	}
	if overlaps {
		t.Fatal("completed booking should not conflict under default statuses")
	}

	overlaps, err = detector.Overlaps(context.Background(), 1, at(monday, 10, 0), at(monday, 11, 0), models.StatusCompleted)
	if err != nil {
		t.Fatalf("Overlaps: %v", err)
	}
	if !overlaps {
		t.Fatal("completed booking should conflict when explicitly requested")
	}
}

func TestDetectorBlackedOut(t *testing.T) {
	queries := newMondayQueries()
	queries.exceptions = []models.ExceptionPeriod{
		{ProviderID: 10, StartTime: at(monday, 12, 0), EndTime: at(monday, 13, 0)},
	}
	detector := NewDetector(queries)

	blocked, err := detector.BlackedOut(context.Background(), 10, at(monday, 12, 30), at(monday, 13, 30))
	if err != nil {
		t.Fatalf("BlackedOut: %v", err)
	}
	if !blocked {
		t.Fatal("expected interval to be blacked out")
	}
	blocked, err = detector.BlackedOut(context.Background(), 10, at(monday, 13, 0), at(monday, 14, 0))
	if err != nil {
		t.Fatalf("BlackedOut: %v", err)
	}
	if blocked {
		t.Fatal("interval touching the exception end must not be blacked out")
	}
}
