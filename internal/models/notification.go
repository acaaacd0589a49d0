// internal/models/notification.go
package models

import (
	"strings"
	"time"
)

type NotificationChannel string

const (
	ChannelEmail  NotificationChannel = "EMAIL"
	ChannelSMS    NotificationChannel = "SMS"
	ChannelSystem NotificationChannel = "SYSTEM"
)

// NotificationKind selects the message template used for delivery.
type NotificationKind string

const (
	KindConfirmation NotificationKind = "Confirmation"
	KindCancellation NotificationKind = "Cancellation"
	KindReminder     NotificationKind = "Reminder"
	KindCreated      NotificationKind = "Created"
	KindVerification NotificationKind = "Verification"
)

const (
	TitleConfirmation = "Booking Confirmation"
	TitleCancellation = "Booking Cancellation"
	TitleReminder     = "Booking Reminder"
	TitleCreated      = "Booking Created"
	TitleVerification = "Email Verification"
)

// Title returns the stored title for kind.
func (k NotificationKind) Title() string {
	switch k {
	case KindConfirmation:
		return TitleConfirmation
	case KindCancellation:
		return TitleCancellation
	case KindReminder:
		return TitleReminder
	case KindCreated:
		return TitleCreated
	case KindVerification:
		return TitleVerification
	}
	return string(k)
}

// dispatchKeywords lists the title keywords the outbox dispatcher understands.
var dispatchKeywords = []NotificationKind{KindConfirmation, KindCancellation, KindReminder}

// ClassifyTitle finds the dispatchable kind named by a notification title.
func ClassifyTitle(title string) (NotificationKind, bool) {
	for _, kind := range dispatchKeywords {
		if strings.Contains(title, string(kind)) {
			return kind, true
		}
	}
	return "", false
}

type Notification struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"userId"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	Channel   NotificationChannel `json:"channel"`
	Sent      bool                `json:"sent"`
	SentAt    *time.Time          `json:"sentAt,omitempty"`
	BookingID *int64              `json:"bookingId,omitempty"`
	CreatedAt time.Time           `json:"createdAt"`
}

// NotificationFilter narrows notification queries. Zero values are ignored.
type NotificationFilter struct {
	Channel       NotificationChannel
	Unsent        bool
	TitleContains string
	CreatedBefore *time.Time
}

type VerificationToken struct {
	Token      string    `json:"token"`
	UserID     int64     `json:"userId"`
	ExpiryDate time.Time `json:"expiryDate"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (t VerificationToken) Expired(now time.Time) bool {
	return t.ExpiryDate.Before(now)
}
