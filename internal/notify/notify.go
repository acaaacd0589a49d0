// Package notify delivers booking and account messages over email or SMS.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/codr1/slotwise/internal/email"
	"github.com/codr1/slotwise/internal/models"
	"github.com/codr1/slotwise/internal/ratelimit"
	"github.com/codr1/slotwise/internal/sms"
)

// Notifier sends one message. A nil error means the message was handed to
// the delivery provider.
type Notifier interface {
	Send(ctx context.Context, to Recipient, kind models.NotificationKind, payload Payload) error
}

type Recipient struct {
	UserID  int64
	Name    string
	Email   string
	Phone   string
	Channel models.NotificationChannel
}

// Payload carries the template data for a message. Booking fields are used by
// booking kinds; VerifyURL and ExpiresAt by verification.
type Payload struct {
	BookingID    int64
	ResourceName string
	Start        time.Time
	End          time.Time
	Notes        string
	VerifyURL    string
	ExpiresAt    time.Time
}

type Config struct {
	// RatePerSecond caps outgoing messages across all channels. Zero disables
	// throttling.
	RatePerSecond float64
	Burst         int
	// SMSFallback sends a short text when an email recipient has no address
	// but has a phone number.
	SMSFallback bool
}

// Service routes messages to the email or SMS sender.
type Service struct {
	email   email.EmailSender
	sms     sms.Sender
	limiter *rate.Limiter
	config  Config
}

// New builds a Service. Nil senders are replaced with log-only senders.
func New(emailSender email.EmailSender, smsSender sms.Sender, cfg Config) *Service {
	if emailSender == nil {
		emailSender = email.LogSender{}
	}
	if smsSender == nil {
		smsSender = sms.LogSender{}
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Service{
		email:   emailSender,
		sms:     smsSender,
		limiter: limiter,
		config:  cfg,
	}
}

func (s *Service) Send(ctx context.Context, to Recipient, kind models.NotificationKind, payload Payload) error {
	msg, err := Render(to, kind, payload)
	if err != nil {
		return err
	}

	channel := to.Channel
	if channel == "" {
		channel = models.ChannelEmail
	}
	if channel == models.ChannelEmail && to.Email == "" && s.config.SMSFallback && to.Phone != "" {
		channel = models.ChannelSMS
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notification rate limit: %w", err)
		}
	}

	logger := log.Ctx(ctx).With().
		Int64("user_id", to.UserID).
		Str("kind", string(kind)).
		Str("channel", string(channel)).
		Logger()

	switch channel {
	case models.ChannelEmail:
		if to.Email == "" {
			return fmt.Errorf("user %d has no email address", to.UserID)
		}
		if err := s.email.Send(ctx, to.Email, msg.Subject, msg.Body); err != nil {
			return err
		}
		logger.Debug().Str("recipient", ratelimit.SanitizeIdentifier(to.Email)).Msg("Notification emailed")
	case models.ChannelSMS:
		if to.Phone == "" {
			return fmt.Errorf("user %d has no phone number", to.UserID)
		}
		if err := s.sms.Send(ctx, to.Phone, msg.Subject); err != nil {
			return err
		}
		logger.Debug().Str("recipient", ratelimit.SanitizeIdentifier(to.Phone)).Msg("Notification texted")
	default:
		return fmt.Errorf("unsupported notification channel %q", channel)
	}
	return nil
}

// Render builds the message for kind.
func Render(to Recipient, kind models.NotificationKind, payload Payload) (email.Message, error) {
	details := email.BookingDetails{
		BookingID:     payload.BookingID,
		RecipientName: to.Name,
		ResourceName:  payload.ResourceName,
		Start:         payload.Start,
		End:           payload.End,
		Notes:         payload.Notes,
	}
	switch kind {
	case models.KindConfirmation:
		return email.BuildConfirmationEmail(details), nil
	case models.KindCancellation:
		return email.BuildCancellationEmail(details), nil
	case models.KindReminder:
		return email.BuildReminderEmail(details), nil
	case models.KindVerification:
		if payload.VerifyURL == "" {
			return email.Message{}, fmt.Errorf("verification message needs a link")
		}
		return email.BuildVerificationEmail(to.Name, payload.VerifyURL, payload.ExpiresAt), nil
	}
	return email.Message{}, fmt.Errorf("no template for notification kind %q", kind)
}
