// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/api/apiutil"
	"github.com/codr1/slotwise/internal/booking"
	"github.com/codr1/slotwise/internal/models"
)

var (
	service     *booking.Service
	serviceOnce sync.Once
)

const (
	bookingIDParam      = "id"
	bookingQueryTimeout = 10 * time.Second
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *booking.Service) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// POST /api/v1/bookings
func HandleBookingCreate(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var req booking.CreateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	created, err := svc.Create(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Int64("booking_id", created.ID).
		Int64("resource_id", created.ResourceID).
		Msg("Booking created")
	writeJSON(w, r, http.StatusCreated, created)
}

// GET /api/v1/bookings/{id}
func HandleBookingGet(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	b, err := svc.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

// GET /api/v1/bookings?user_id=|provider_id=|status=
//
// Exactly one of user_id and provider_id may be given; status filters the
// result and may be repeated. With neither id, status is required.
func HandleBookingsList(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	query := r.URL.Query()
	statuses, err := parseStatuses(query["status"])
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	userRaw, providerRaw := query.Get("user_id"), query.Get("provider_id")
	if userRaw != "" && providerRaw != "" {
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "user_id", Reason: "cannot be combined with provider_id"})
		return
	}

	var list []models.Booking
	switch {
	case userRaw != "":
		userID, parseErr := apiutil.QueryID(r, "user_id")
		if parseErr != nil {
			apiutil.WriteError(w, r, parseErr)
			return
		}
		list, err = svc.ListByUser(ctx, userID, statuses...)
	case providerRaw != "":
		providerID, parseErr := apiutil.QueryID(r, "provider_id")
		if parseErr != nil {
			apiutil.WriteError(w, r, parseErr)
			return
		}
		list, err = svc.ListByProvider(ctx, providerID, statuses...)
	case len(statuses) == 1:
		list, err = svc.ListByStatus(ctx, statuses[0])
	default:
		apiutil.WriteError(w, r, apiutil.FieldError{Field: "user_id", Reason: "or provider_id or a single status is required"})
		return
	}
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	writeJSON(w, r, http.StatusOK, list)
}

// PATCH /api/v1/bookings/{id}/status
func HandleBookingStatusUpdate(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req statusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	status, err := models.ParseBookingStatus(req.Status)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	updated, err := svc.UpdateStatus(ctx, id, status)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Int64("booking_id", id).
		Str("status", string(updated.Status)).
		Msg("Booking status updated")
	writeJSON(w, r, http.StatusOK, updated)
}

// PATCH /api/v1/bookings/{id}/notes
func HandleBookingNotesUpdate(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req notesRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	updated, err := svc.UpdateNotes(ctx, id, req.Notes)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// DELETE /api/v1/bookings/{id}
func HandleBookingDelete(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	id, err := apiutil.PathID(r, bookingIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	if err := svc.Delete(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Int64("booking_id", id).Msg("Booking deleted")
	w.WriteHeader(http.StatusNoContent)
}

func parseStatuses(values []string) ([]models.BookingStatus, error) {
	var statuses []models.BookingStatus
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := models.ParseBookingStatus(part)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func loadService(w http.ResponseWriter, r *http.Request) *booking.Service {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("Booking handlers not initialized")
		_ = apiutil.WriteJSON(w, http.StatusInternalServerError, apiutil.ErrorResponse{Error: "Internal Server Error"})
		return nil
	}
	return service
}
