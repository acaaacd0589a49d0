package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/codr1/slotwise/internal/config"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/models"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// NewTestDBInZone creates a temporary database the way the server does, through
// config, so that times are read back in timezone.
func NewTestDBInZone(t *testing.T, timezone string) *db.DB {
	t.Helper()

	doc := fmt.Sprintf("app:\n  name: slotwise-test\n  port: 8080\n  timezone: %s\ndatabase:\n  filename: %s\n",
		timezone, filepath.Join(t.TempDir(), "test.db"))
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse test config: %v", err)
	}
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// Fixture is a provider, a customer and one resource owned by the provider.
type Fixture struct {
	Provider models.User
	Customer models.User
	Resource models.Resource
}

// Seed inserts a Fixture whose resource has the given slot length and opening
// windows.
func Seed(t *testing.T, database *db.DB, durationMinutes int, windows ...models.AvailabilityWindow) Fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	provider, err := database.Queries.CreateUser(ctx, models.User{
		Name:  "Provider",
		Email: fmt.Sprintf("provider-%d@example.com", time.Now().UnixNano()),
	}, now)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	customer, err := database.Queries.CreateUser(ctx, models.User{
		Name:  "Customer",
		Email: fmt.Sprintf("customer-%d@example.com", time.Now().UnixNano()),
		Phone: "+14155550100",
	}, now)
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	resource, err := database.Queries.CreateResource(ctx, models.Resource{
		ProviderID:      provider.ID,
		Name:            "Consultation",
		DurationMinutes: durationMinutes,
	})
	if err != nil {
		t.Fatalf("create resource: %v", err)
	}
	for _, w := range windows {
		w.ResourceID = resource.ID
		if _, err := database.Queries.CreateAvailabilityWindow(ctx, w); err != nil {
			t.Fatalf("create availability window: %v", err)
		}
	}

	return Fixture{Provider: provider, Customer: customer, Resource: resource}
}

// Window builds an availability window from "HH:MM" bounds.
func Window(day time.Weekday, start, end string) models.AvailabilityWindow {
	s, err := models.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	e, err := models.ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	return models.AvailabilityWindow{DayOfWeek: day, StartTime: s, EndTime: e}
}
