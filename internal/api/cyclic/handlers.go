// internal/api/cyclic/handlers.go
package cyclic

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/api/apiutil"
	"github.com/codr1/slotwise/internal/booking"
	"github.com/codr1/slotwise/internal/models"
)

var (
	orchestrator     *booking.Orchestrator
	orchestratorOnce sync.Once
)

const (
	cyclicIDParam = "id"

	// Expansion creates one booking per date, each in its own transaction.
	cyclicQueryTimeout = 30 * time.Second
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(o *booking.Orchestrator) {
	if o == nil {
		return
	}
	orchestratorOnce.Do(func() {
		orchestrator = o
	})
}

// POST /api/v1/cyclic-bookings
func HandleCyclicCreate(w http.ResponseWriter, r *http.Request) {
	o := loadOrchestrator(w, r)
	if o == nil {
		return
	}

	var req booking.CyclicRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cyclicQueryTimeout)
	defer cancel()

	root, err := o.CreateCyclic(ctx, req)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().
		Int64("cyclic_booking_id", root.ID).
		Int("instances", len(root.ChildIDs)).
		Msg("Cyclic booking created")
	writeJSON(w, r, http.StatusCreated, root)
}

// GET /api/v1/cyclic-bookings/{id}
func HandleCyclicGet(w http.ResponseWriter, r *http.Request) {
	o := loadOrchestrator(w, r)
	if o == nil {
		return
	}
	id, err := apiutil.PathID(r, cyclicIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cyclicQueryTimeout)
	defer cancel()

	root, err := o.GetCyclic(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, root)
}

// GET /api/v1/cyclic-bookings?user_id=
func HandleCyclicList(w http.ResponseWriter, r *http.Request) {
	o := loadOrchestrator(w, r)
	if o == nil {
		return
	}
	userID, err := apiutil.QueryID(r, "user_id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cyclicQueryTimeout)
	defer cancel()

	roots, err := o.ListCyclicByUser(ctx, userID)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if roots == nil {
		roots = []models.CyclicBooking{}
	}
	writeJSON(w, r, http.StatusOK, roots)
}

// PATCH /api/v1/cyclic-bookings/{id}/status
func HandleCyclicStatusUpdate(w http.ResponseWriter, r *http.Request) {
	o := loadOrchestrator(w, r)
	if o == nil {
		return
	}
	id, err := apiutil.PathID(r, cyclicIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	status, err := models.ParseBookingStatus(req.Status)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cyclicQueryTimeout)
	defer cancel()

	root, err := o.UpdateCyclicStatus(ctx, id, status)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, root)
}

// PATCH /api/v1/cyclic-bookings/{id}/notes
func HandleCyclicNotesUpdate(w http.ResponseWriter, r *http.Request) {
	o := loadOrchestrator(w, r)
	if o == nil {
		return
	}
	id, err := apiutil.PathID(r, cyclicIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cyclicQueryTimeout)
	defer cancel()

	root, err := o.UpdateCyclicNotes(ctx, id, req.Notes)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, root)
}

// DELETE /api/v1/cyclic-bookings/{id}
func HandleCyclicDelete(w http.ResponseWriter, r *http.Request) {
	o := loadOrchestrator(w, r)
	if o == nil {
		return
	}
	id, err := apiutil.PathID(r, cyclicIDParam)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), cyclicQueryTimeout)
	defer cancel()

	if err := o.DeleteCyclic(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	log.Ctx(r.Context()).Info().Int64("cyclic_booking_id", id).Msg("Cyclic booking deleted")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func loadOrchestrator(w http.ResponseWriter, r *http.Request) *booking.Orchestrator {
	if orchestrator == nil {
		log.Ctx(r.Context()).Error().Msg("Cyclic booking handlers not initialized")
		_ = apiutil.WriteJSON(w, http.StatusInternalServerError, apiutil.ErrorResponse{Error: "Internal Server Error"})
		return nil
	}
	return orchestrator
}
