package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codr1/slotwise/internal/availability"
	"github.com/codr1/slotwise/internal/booking"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/testutil"
)

// Monday 2024-03-04 08:00 UTC.
var testNow = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

type harness struct {
	db      *db.DB
	clock   *testutil.Clock
	service *booking.Service
	fixture testutil.Fixture
}

func newHarness(t *testing.T) harness {
	t.Helper()
	database := testutil.NewTestDB(t)

	var windows []models.AvailabilityWindow
	for day := time.Sunday; day <= time.Saturday; day++ {
		windows = append(windows, testutil.Window(day, "08:00", "20:00"))
	}
	fx := testutil.Seed(t, database, 60, windows...)
	clk := testutil.NewClock(testNow)

	return harness{
		db:      database,
		clock:   clk,
		service: booking.NewService(database, clk),
		fixture: fx,
	}
}

func (h harness) create(t *testing.T, start time.Time) models.Booking {
	t.Helper()
	b, err := h.service.Create(context.Background(), booking.CreateRequest{
		ResourceID: h.fixture.Resource.ID,
		UserID:     h.fixture.Customer.ID,
		StartTime:  start,
	})
	if err != nil {
		t.Fatalf("create booking at %v: %v", start, err)
	}
	return b
}

func (h harness) notificationsFor(t *testing.T, bookingID int64, channel models.NotificationChannel) []models.Notification {
	t.Helper()
	all, err := h.db.Queries.ListNotifications(context.Background(), models.NotificationFilter{Channel: channel})
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	var out []models.Notification
	for _, n := range all {
		if n.BookingID != nil && *n.BookingID == bookingID {
			out = append(out, n)
		}
	}
	return out
}

func TestCreateBooking(t *testing.T) {
	h := newHarness(t)
	start := testNow.Add(2 * time.Hour)

	b := h.create(t, start)
	if b.Status != models.StatusPending {
		t.Fatalf("status = %s, want PENDING", b.Status)
	}
	if !b.EndTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("end = %v, want start + duration", b.EndTime)
	}

	created := h.notificationsFor(t, b.ID, models.ChannelSystem)
	if len(created) != 1 || created[0].Title != models.TitleCreated {
		t.Fatalf("system notifications = %+v", created)
	}
}

func TestCreateBookingRejections(t *testing.T) {
	h := newHarness(t)
	h.create(t, testNow.Add(2*time.Hour))

	tests := []struct {
		name string
		req  booking.CreateRequest
		want error
	}{
		{
			name: "overlapping booking",
			req:  booking.CreateRequest{ResourceID: h.fixture.Resource.ID, UserID: h.fixture.Customer.ID, StartTime: testNow.Add(150 * time.Minute)},
			want: models.ErrConflict,
		},
		{
			name: "outside window",
			req:  booking.CreateRequest{ResourceID: h.fixture.Resource.ID, UserID: h.fixture.Customer.ID, StartTime: testNow.Add(12 * time.Hour)},
			want: models.ErrConflict,
		},
		{
			name: "in the past",
			req:  booking.CreateRequest{ResourceID: h.fixture.Resource.ID, UserID: h.fixture.Customer.ID, StartTime: testNow.Add(-time.Hour)},
			want: models.ErrValidation,
		},
		{
			name: "unknown resource",
			req:  booking.CreateRequest{ResourceID: 999, UserID: h.fixture.Customer.ID, StartTime: testNow.Add(4 * time.Hour)},
			want: models.ErrNotFound,
		},
		{
			name: "unknown user",
			req:  booking.CreateRequest{ResourceID: h.fixture.Resource.ID, UserID: 999, StartTime: testNow.Add(4 * time.Hour)},
			want: models.ErrNotFound,
		},
		{
			name: "missing start",
			req:  booking.CreateRequest{ResourceID: h.fixture.Resource.ID, UserID: h.fixture.Customer.ID},
			want: models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.Create(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAdjacentBookingsDoNotConflict(t *testing.T) {
	h := newHarness(t)
	first := h.create(t, testNow.Add(2*time.Hour))
	second := h.create(t, first.EndTime)

	if !second.StartTime.Equal(first.EndTime) {
		t.Fatalf("second starts %v, want %v", second.StartTime, first.EndTime)
	}
}

func TestCancelledBookingFreesSlot(t *testing.T) {
	h := newHarness(t)
	start := testNow.Add(2 * time.Hour)
	b := h.create(t, start)

	if _, err := h.service.Cancel(context.Background(), b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.create(t, start)
}

func TestConcurrentCreateAllowsSingleWinner(t *testing.T) {
	h := newHarness(t)
	start := testNow.Add(3 * time.Hour)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Create(context.Background(), booking.CreateRequest{
				ResourceID: h.fixture.Resource.ID,
				UserID:     h.fixture.Customer.ID,
				StartTime:  start,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("successes = %d, conflicts = %d", successes, conflicts)
	}
}

func TestConfirmEnqueuesReminderOnlyForDistantBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	distant := h.create(t, testNow.Add(48*time.Hour))
	soon := h.create(t, testNow.Add(2*time.Hour))

	for _, id := range []int64{distant.ID, soon.ID} {
		if _, err := h.service.Confirm(ctx, id); err != nil {
			t.Fatalf("confirm %d: %v", id, err)
		}
	}

	tests := []struct {
		name   string
		id     int64
		titles []string
	}{
		{name: "48h out", id: distant.ID, titles: []string{models.TitleConfirmation, models.TitleReminder}},
		{name: "2h out", id: soon.ID, titles: []string{models.TitleConfirmation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.notificationsFor(t, tt.id, models.ChannelEmail)
			if len(got) != len(tt.titles) {
				t.Fatalf("notifications = %+v, want %v", got, tt.titles)
			}
			for i, title := range tt.titles {
				if got[i].Title != title || got[i].Sent {
					t.Fatalf("notification %d = %q sent=%v, want unsent %q", i, got[i].Title, got[i].Sent, title)
				}
			}
		})
	}
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.create(t, testNow.Add(2*time.Hour))

	if _, err := h.service.Complete(ctx, b.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("complete pending err = %v", err)
	}
	if _, err := h.service.Cancel(ctx, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.service.Confirm(ctx, b.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("confirm cancelled err = %v", err)
	}
	if _, err := h.service.Confirm(ctx, 999); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("confirm missing err = %v", err)
	}

	got, err := h.service.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got.Status)
	}
}

func TestUpdateNotesAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := h.create(t, testNow.Add(2*time.Hour))

	updated, err := h.service.UpdateNotes(ctx, b.ID, "bring paperwork")
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if updated.Notes != "bring paperwork" {
		t.Fatalf("notes = %q", updated.Notes)
	}

	if err := h.service.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := h.service.Get(ctx, b.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("get deleted err = %v", err)
	}
	if _, err := h.service.UpdateNotes(ctx, b.ID, "x"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("update deleted err = %v", err)
	}
}

func TestListQueries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.create(t, testNow.Add(2*time.Hour))
	h.create(t, testNow.Add(4*time.Hour))
	if _, err := h.service.Confirm(ctx, first.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	byUser, err := h.service.ListByUser(ctx, h.fixture.Customer.ID)
	if err != nil || len(byUser) != 2 {
		t.Fatalf("by user = %d, %v", len(byUser), err)
	}
	confirmedByUser, err := h.service.ListByUser(ctx, h.fixture.Customer.ID, models.StatusConfirmed)
	if err != nil || len(confirmedByUser) != 1 {
		t.Fatalf("confirmed by user = %d, %v", len(confirmedByUser), err)
	}
	byProvider, err := h.service.ListByProvider(ctx, h.fixture.Provider.ID)
	if err != nil || len(byProvider) != 2 {
		t.Fatalf("by provider = %d, %v", len(byProvider), err)
	}
	pending, err := h.service.ListByStatus(ctx, models.StatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %d, %v", len(pending), err)
	}
}

func TestCreateReadsStartInBusinessTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	database := testutil.NewTestDBInZone(t, "America/New_York")
	fx := testutil.Seed(t, database, 60, testutil.Window(time.Monday, "09:00", "17:00"))
	clk := testutil.NewClock(testNow)
	svc := booking.NewService(database, clk)
	ctx := context.Background()

	slots, err := availability.NewEngine(database.Queries, clk).
		AvailableSlots(ctx, fx.Resource.ID, time.Date(2024, 3, 4, 0, 0, 0, 0, ny))
	if err != nil {
		t.Fatalf("available slots: %v", err)
	}
	if len(slots) != 8 {
		t.Fatalf("slots = %d, want 8", len(slots))
	}

	// Every listed slot can be booked when the client sends it in UTC.
	for _, slot := range slots {
		b, err := svc.Create(ctx, booking.CreateRequest{
			ResourceID: fx.Resource.ID,
			UserID:     fx.Customer.ID,
			StartTime:  slot.Start.UTC(),
		})
		if err != nil {
			t.Fatalf("book slot %v: %v", slot.Start.UTC(), err)
		}
		if !b.StartTime.Equal(slot.Start) || b.StartTime.Location().String() != "America/New_York" {
			t.Fatalf("booking starts %v, want %v in New York", b.StartTime, slot.Start)
		}
	}

	tests := []struct {
		name  string
		start time.Time
	}{
		{"before opening", time.Date(2024, 3, 4, 13, 0, 0, 0, time.UTC)}, // 08:00 EST
		{"past closing", time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC)},   // 17:00 EST
		{"opening hour in another zone", time.Date(2024, 3, 4, 9, 0, 0, 0, time.FixedZone("CET", 3600))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, booking.CreateRequest{
				ResourceID: fx.Resource.ID,
				UserID:     fx.Customer.ID,
				StartTime:  tt.start,
			})
			if !errors.Is(err, models.ErrConflict) {
				t.Fatalf("err = %v, want conflict", err)
			}
		})
	}
}
