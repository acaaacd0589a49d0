// Package verification issues and redeems single-use email verification tokens.
package verification

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/clock"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/notify"
	"github.com/codr1/slotwise/internal/ratelimit"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

type Service struct {
	db       *db.DB
	notifier notify.Notifier
	clock    clock.Clock
	baseURL  string
}

// NewService builds a Service. Verification links point at baseURL.
func NewService(database *db.DB, notifier notify.Notifier, clk clock.Clock, baseURL string) *Service {
	if clk == nil {
		clk = clock.System{Location: database.Location()}
	}
	return &Service{
		db:       database,
		notifier: notifier,
		clock:    clk,
		baseURL:  baseURL,
	}
}

// Issue stores a new token for userID and emails the verification link. The
// token is kept even if delivery fails so a resend can reuse the flow.
func (s *Service) Issue(ctx context.Context, userID int64) (models.VerificationToken, error) {
	user, err := s.db.Queries.GetUser(ctx, userID)
	if err != nil {
		return models.VerificationToken{}, err
	}

	now := s.clock.Now()
	token := models.VerificationToken{
		Token:      uuid.NewString(),
		UserID:     user.ID,
		ExpiryDate: now.Add(TokenTTL),
		CreatedAt:  now,
	}
	if err := s.db.Queries.CreateVerificationToken(ctx, token); err != nil {
		return models.VerificationToken{}, err
	}

	err = s.notifier.Send(ctx, notify.Recipient{
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Channel: models.ChannelEmail,
	}, models.KindVerification, notify.Payload{
		VerifyURL: s.verifyURL(token.Token),
		ExpiresAt: token.ExpiryDate,
	})
	if err != nil {
		return token, fmt.Errorf("send verification email: %w", err)
	}

	log.Ctx(ctx).Info().
		Int64("user_id", user.ID).
		Str("email", ratelimit.SanitizeIdentifier(user.Email)).
		Msg("Verification token issued")
	return token, nil
}

// Consume redeems token and returns the user it belongs to. Expired tokens are
// rejected and left for the sweep job.
func (s *Service) Consume(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, &models.ValidationError{Field: "token", Message: "token is required"}
	}

	var userID int64
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		stored, err := tx.Queries.GetVerificationToken(ctx, token)
		if err != nil {
			return err
		}
		if stored.Expired(s.clock.Now()) {
			return &models.ValidationError{Field: "token", Message: "verification token has expired"}
		}
		userID = stored.UserID
		return tx.Queries.DeleteVerificationToken(ctx, token)
	})
	if err != nil {
		return 0, err
	}

	log.Ctx(ctx).Info().Int64("user_id", userID).Msg("Verification token consumed")
	return userID, nil
}

func (s *Service) verifyURL(token string) string {
	return s.baseURL + "/api/v1/verify?token=" + url.QueryEscape(token)
}
