package apiutil

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// PathID parses the positive int64 path parameter name.
func PathID(r *http.Request, name string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(name), name)
}

// QueryID parses the positive int64 query parameter name.
func QueryID(r *http.Request, name string) (int64, error) {
	return ParsePositiveInt64Field(r.URL.Query().Get(name), name)
}

// ParseDate parses a YYYY-MM-DD value as midnight in loc.
func ParseDate(raw string, field string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, FieldError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return parsed, nil
}

// ParseOptionalInt parses raw as a non-negative int, returning fallback when
// raw is empty.
func ParseOptionalInt(raw string, field string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, FieldError{Field: field, Reason: "must be 0 or greater"}
	}
	return value, nil
}
