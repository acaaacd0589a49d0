package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/models"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets request parsing failures map to 400 like domain validation errors.
func (e FieldError) Is(target error) bool {
	return target == models.ErrValidation
}

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

const maxBodyBytes = 1 << 20

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return FieldError{Field: "body", Reason: "is required"}
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return FieldError{Field: "body", Reason: "is not valid JSON: " + err.Error()}
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return FieldError{Field: "body", Reason: "must contain a single JSON object"}
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// WriteError writes err as a JSON error body. Unexpected errors are logged and
// hidden from the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Error: err.Error()}

	var validation *models.ValidationError
	var field FieldError
	switch {
	case errors.As(err, &validation):
		body.Field = validation.Field
	case errors.As(err, &field):
		body.Field = field.Field
	}

	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		body = ErrorResponse{Error: "Internal Server Error"}
	}
	if writeErr := WriteJSON(w, status, body); writeErr != nil {
		log.Ctx(r.Context()).Error().Err(writeErr).Msg("Failed to write error response")
	}
}
