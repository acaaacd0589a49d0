package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    TimeOfDay
		wantErr bool
	}{
		{name: "empty", value: "", wantErr: true},
		{name: "garbage", value: "nine", wantErr: true},
		{name: "morning", value: "09:00", want: NewTimeOfDay(9, 0)},
		{name: "trimmed", value: " 17:30 ", want: NewTimeOfDay(17, 30)},
		{name: "with_seconds", value: "08:15:00", want: NewTimeOfDay(8, 15)},
		{name: "out_of_range", value: "25:00", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseTimeOfDay(test.value)
			if test.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseTimeOfDay(%q) error = %v, want validation error", test.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimeOfDay(%q) unexpected error: %v", test.value, err)
			}
			if got != test.want {
				t.Fatalf("ParseTimeOfDay(%q) = %s, want %s", test.value, got, test.want)
			}
		})
	}
}

func TestTimeOfDayOnKeepsLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	day := time.Date(2024, time.March, 4, 23, 59, 0, 0, loc)

	got := NewTimeOfDay(9, 30).On(day)
	want := time.Date(2024, time.March, 4, 9, 30, 0, 0, loc)
	if !got.Equal(want) || got.Location() != loc {
		t.Fatalf("On() = %s, want %s", got, want)
	}
}

func TestTimeOfDayJSON(t *testing.T) {
	payload, err := json.Marshal(struct {
		At TimeOfDay `json:"at"`
	}{At: NewTimeOfDay(7, 5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"at":"07:05"}` {
		t.Fatalf("marshal = %s", payload)
	}

	var decoded struct {
		At TimeOfDay `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"18:45"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.At != NewTimeOfDay(18, 45) {
		t.Fatalf("unmarshal = %s", decoded.At)
	}
}

func TestClassifyTitle(t *testing.T) {
	tests := []struct {
		title  string
		want   NotificationKind
		wantOK bool
	}{
		{title: TitleConfirmation, want: KindConfirmation, wantOK: true},
		{title: TitleCancellation, want: KindCancellation, wantOK: true},
		{title: TitleReminder, want: KindReminder, wantOK: true},
		{title: TitleCreated, wantOK: false},
		{title: "Weekly digest", wantOK: false},
	}

	for _, test := range tests {
		t.Run(test.title, func(t *testing.T) {
			got, ok := ClassifyTitle(test.title)
			if ok != test.wantOK || got != test.want {
				t.Fatalf("ClassifyTitle(%q) = (%q, %t), want (%q, %t)", test.title, got, ok, test.want, test.wantOK)
			}
		})
	}
}

func TestAvailabilityWindowContains(t *testing.T) {
	window := AvailabilityWindow{
		ResourceID: 1,
		DayOfWeek:  time.Monday,
		StartTime:  NewTimeOfDay(9, 0),
		EndTime:    NewTimeOfDay(17, 0),
	}
	monday := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

	if !window.Contains(monday.Add(9*time.Hour), monday.Add(10*time.Hour)) {
		t.Fatal("expected 09:00-10:00 to be contained")
	}
	if !window.Contains(monday.Add(16*time.Hour), monday.Add(17*time.Hour)) {
		t.Fatal("expected 16:00-17:00 to be contained")
	}
	if window.Contains(monday.Add(16*time.Hour+30*time.Minute), monday.Add(17*time.Hour+30*time.Minute)) {
		t.Fatal("expected 16:30-17:30 to spill past the window")
	}
	tuesday := monday.AddDate(0, 0, 1)
	if window.Contains(tuesday.Add(9*time.Hour), tuesday.Add(10*time.Hour)) {
		t.Fatal("expected a Tuesday interval to be rejected")
	}
}

func TestDomainErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{name: "validation", err: &ValidationError{Field: "f", Message: "bad"}, sentinel: ErrValidation},
		{name: "not_found", err: &NotFoundError{Entity: "booking", ID: 7}, sentinel: ErrNotFound},
		{name: "conflict", err: &ConflictError{ResourceID: 1}, sentinel: ErrConflict},
		{name: "transition", err: &InvalidTransitionError{From: StatusCompleted, To: StatusPending}, sentinel: ErrInvalidTransition},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			wrapped := errors.Join(errors.New("context"), test.err)
			if !errors.Is(wrapped, test.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false", test.err, test.sentinel)
			}
		})
	}
}

func TestCyclicBookingEffectiveEndDate(t *testing.T) {
	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	root := CyclicBooking{StartDate: start}
	if got := root.EffectiveEndDate(); !got.Equal(time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("EffectiveEndDate() = %s", got)
	}

	end := start.AddDate(0, 0, 14)
	root.EndDate = &end
	if got := root.EffectiveEndDate(); !got.Equal(end) {
		t.Fatalf("EffectiveEndDate() = %s, want %s", got, end)
	}
}
