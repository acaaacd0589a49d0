// internal/models/resource.go
package models

import "time"

// Resource is a bookable service offered by a provider.
type Resource struct {
	ID              int64  `json:"id"`
	ProviderID      int64  `json:"providerId"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"durationMinutes"`
}

func (r Resource) Duration() time.Duration {
	return time.Duration(r.DurationMinutes) * time.Minute
}

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// AvailabilityWindow is a recurring weekly open interval of a resource.
type AvailabilityWindow struct {
	ID         int64        `json:"id"`
	ResourceID int64        `json:"resourceId"`
	DayOfWeek  time.Weekday `json:"dayOfWeek"`
	StartTime  TimeOfDay    `json:"startTime"`
	EndTime    TimeOfDay    `json:"endTime"`
}

func (w AvailabilityWindow) Validate() error {
	if w.ResourceID <= 0 {
		return &ValidationError{Field: "resource_id", Message: "resource_id must be a positive integer"}
	}
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return &ValidationError{Field: "day_of_week", Message: "day_of_week must be between 0 and 6"}
	}
	if w.EndTime <= w.StartTime {
		return &ValidationError{Field: "end_time", Message: "end_time must be after start_time"}
	}
	return nil
}

// Contains reports whether [start,end) lies inside the window on start's date.
func (w AvailabilityWindow) Contains(start, end time.Time) bool {
	if start.Weekday() != w.DayOfWeek {
		return false
	}
	return !start.Before(w.StartTime.On(start)) && !end.After(w.EndTime.On(start))
}

// ExceptionPeriod is a provider-level blackout.
type ExceptionPeriod struct {
	ID          int64     `json:"id"`
	ProviderID  int64     `json:"providerId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Description string    `json:"description"`
}

func (p ExceptionPeriod) Validate() error {
	if p.ProviderID <= 0 {
		return &ValidationError{Field: "provider_id", Message: "provider_id must be a positive integer"}
	}
	if !p.EndTime.After(p.StartTime) {
		return &ValidationError{Field: "end_time", Message: "end_time must be after start_time"}
	}
	return nil
}
