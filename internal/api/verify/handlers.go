// internal/api/verify/handlers.go
package verify

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/api/apiutil"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/verification"
)

var (
	service     *verification.Service
	serviceOnce sync.Once
)

const verifyQueryTimeout = 15 * time.Second

type issueResponse struct {
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type consumeResponse struct {
	UserID   int64 `json:"userId"`
	Verified bool  `json:"verified"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *verification.Service) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
	})
}

// POST /api/v1/users/{id}/verification
func HandleIssue(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	userID, err := apiutil.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), verifyQueryTimeout)
	defer cancel()

	token, err := svc.Issue(ctx, userID)
	if err != nil {
		// The token is stored before delivery; a zero token means nothing was issued.
		if token.Token == "" {
			apiutil.WriteError(w, r, err)
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("Verification email delivery failed")
		writeJSON(w, r, http.StatusBadGateway, apiutil.ErrorResponse{Error: "verification email could not be sent"})
		return
	}
	writeJSON(w, r, http.StatusAccepted, issueResponse{UserID: userID, ExpiresAt: token.ExpiryDate})
}

// GET /api/v1/verify?token=
func HandleConsume(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		apiutil.WriteError(w, r, &models.ValidationError{Field: "token", Message: "token is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), verifyQueryTimeout)
	defer cancel()

	userID, err := svc.Consume(ctx, token)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, consumeResponse{UserID: userID, Verified: true})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func loadService(w http.ResponseWriter, r *http.Request) *verification.Service {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("Verification handlers not initialized")
		_ = apiutil.WriteJSON(w, http.StatusInternalServerError, apiutil.ErrorResponse{Error: "Internal Server Error"})
		return nil
	}
	return service
}
