package email

import (
	"fmt"
	"strings"
	"time"
)

type Message struct {
	Subject string
	Body    string
}

// BookingDetails is the booking information rendered into notification emails.
type BookingDetails struct {
	BookingID     int64
	RecipientName string
	ResourceName  string
	Start         time.Time
	End           time.Time
	Notes         string
}

func FormatDateTimeRange(start, end time.Time) (string, string) {
	date := start.Format("Monday, Jan 2, 2006")
	timeRange := fmt.Sprintf("%s - %s %s", start.Format("3:04 PM"), end.Format("3:04 PM"), start.Format("MST"))
	return date, timeRange
}

func BuildConfirmationEmail(details BookingDetails) Message {
	return buildBookingEmail("Booking Confirmed", "Your booking is confirmed.", details)
}

func BuildCancellationEmail(details BookingDetails) Message {
	return buildBookingEmail("Booking Cancelled", "Your booking has been cancelled.", details)
}

func BuildReminderEmail(details BookingDetails) Message {
	return buildBookingEmail("Upcoming Booking Reminder", "Reminder: your booking is coming up.", details)
}

// BuildVerificationEmail renders the address verification message for token.
func BuildVerificationEmail(name, verifyURL string, expires time.Time) Message {
	greeting := "Hello,"
	if name = strings.TrimSpace(name); name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}
	lines := []string{
		greeting,
		"",
		"Confirm your email address by opening the link below:",
		verifyURL,
		"",
		fmt.Sprintf("The link expires %s.", expires.Format("Monday, Jan 2, 2006 3:04 PM MST")),
	}
	return Message{
		Subject: "Verify your email address",
		Body:    strings.Join(lines, "\n"),
	}
}

func buildBookingEmail(subjectPrefix, headline string, details BookingDetails) Message {
	resourceName := strings.TrimSpace(details.ResourceName)
	if resourceName == "" {
		resourceName = "your appointment"
	}
	date, timeRange := "TBD", "TBD"
	if !details.Start.IsZero() {
		date, timeRange = FormatDateTimeRange(details.Start, details.End)
	}

	lines := []string{}
	if name := strings.TrimSpace(details.RecipientName); name != "" {
		lines = append(lines, fmt.Sprintf("Hello %s,", name), "")
	}
	lines = append(lines,
		headline,
		"",
		fmt.Sprintf("Booking: #%d", details.BookingID),
		fmt.Sprintf("Service: %s", resourceName),
		fmt.Sprintf("Date: %s", date),
		fmt.Sprintf("Time: %s", timeRange),
	)
	if notes := strings.TrimSpace(details.Notes); notes != "" {
		lines = append(lines, fmt.Sprintf("Notes: %s", notes))
	}

	return Message{
		Subject: fmt.Sprintf("%s - %s", subjectPrefix, resourceName),
		Body:    strings.Join(lines, "\n"),
	}
}
