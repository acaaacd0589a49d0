// Package sms delivers text messages through Twilio.
package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender delivers a single text message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// NormalizeNumber parses raw as a phone number and returns it in E.164 form.
// Numbers without a country prefix are read in defaultRegion.
func NormalizeNumber(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("phone number is required")
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number %q", raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// messageAPI is the subset of the Twilio REST client used for delivery.
type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioSender struct {
	api           messageAPI
	from          string
	defaultRegion string
}

func NewTwilioSender(accountSID, authToken, from, defaultRegion string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, fmt.Errorf("twilio account sid and auth token are required")
	}
	if defaultRegion == "" {
		defaultRegion = "US"
	}
	fromNumber, err := NormalizeNumber(from, defaultRegion)
	if err != nil {
		return nil, fmt.Errorf("twilio from number: %w", err)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{
		api:           client.Api,
		from:          fromNumber,
		defaultRegion: defaultRegion,
	}, nil
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if s == nil || s.api == nil {
		return fmt.Errorf("twilio sender is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	recipient, err := NormalizeNumber(to, s.defaultRegion)
	if err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("recipient", recipient).Msg("Failed to send SMS")
		return fmt.Errorf("send twilio message: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		log.Ctx(ctx).Debug().Str("recipient", recipient).Str("sid", *resp.Sid).Msg("SMS sent")
	}
	return nil
}

// LogSender logs messages instead of sending them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, body string) error {
	log.Ctx(ctx).Info().Str("recipient", to).Int("length", len(body)).Msg("SMS delivery disabled; message logged")
	return nil
}
