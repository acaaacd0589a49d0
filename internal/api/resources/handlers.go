// internal/api/resources/handlers.go
package resources

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/api/apiutil"
	"github.com/codr1/slotwise/internal/availability"
)

var (
	engine   *availability.Engine
	location *time.Location
	initOnce sync.Once
)

const (
	resourceIDParam       = "id"
	defaultHorizonDays    = 30
	maxHorizonDays        = 366
	availabilityQueryTime = 10 * time.Second
)

type slotsResponse struct {
	ResourceID int64               `json:"resourceId"`
	Date       string              `json:"date"`
	Slots      []availability.Slot `json:"slots"`
}

type datesResponse struct {
	ResourceID int64    `json:"resourceId"`
	Dates      []string `json:"dates"`
}

// InitHandlers must be called during server startup before handling requests.
// Dates in query strings are read in loc.
func InitHandlers(e *availability.Engine, loc *time.Location) {
	if e == nil {
		return
	}
	if loc == nil {
		loc = time.UTC
	}
	initOnce.Do(func() {
		engine = e
		location = loc
	})
}

// GET /api/v1/resources/{id}/slots?date=YYYY-MM-DD
func HandleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	e := loadEngine(w, r)
	if e == nil {
		return
	}
	resourceID, err := apiutil.PathID(r, resourceIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	date, err := apiutil.ParseDate(r.URL.Query().Get("date"), "date", location)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTime)
	defer cancel()

	slots, err := e.AvailableSlots(ctx, resourceID, date)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, slotsResponse{
		ResourceID: resourceID,
		Date:       date.Format(time.DateOnly),
		Slots:      slots,
	})
}

// GET /api/v1/resources/{id}/dates?horizon_days=N
func HandleAvailableDates(w http.ResponseWriter, r *http.Request) {
	e := loadEngine(w, r)
	if e == nil {
		return
	}
	resourceID, err := apiutil.PathID(r, resourceIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	horizon, err := apiutil.ParseOptionalInt(r.URL.Query().Get("horizon_days"), "horizon_days", defaultHorizonDays)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if horizon > maxHorizonDays {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "horizon_days", Reason: "must be at most 366"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), availabilityQueryTime)
	defer cancel()

	dates, err := e.AvailableDates(ctx, resourceID, horizon)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format(time.DateOnly))
	}
	writeJSON(w, r, http.StatusOK, datesResponse{ResourceID: resourceID, Dates: formatted})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func loadEngine(w http.ResponseWriter, r *http.Request) *availability.Engine {
	if engine == nil {
		log.Ctx(r.Context()).Error().Msg("Availability handlers not initialized")
		_ = apiutil.WriteJSON(w, http.StatusInternalServerError, apiutil.ErrorResponse{Error: "Internal Server Error"})
		return nil
	}
	return engine
}
