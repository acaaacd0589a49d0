// Package clock provides the injectable source of "now".
package clock

import "time"

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

// System implements Clock using the system time.
type System struct {
	// Location converts Now into a fixed zone when set.
	Location *time.Location
}

func (s System) Now() time.Time {
	now := time.Now()
	if s.Location != nil {
		return now.In(s.Location)
	}
	return now
}
