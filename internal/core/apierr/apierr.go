// Package apierr carries HTTP-facing error codes and renders them as JSON.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code, message string, status int, details ...string) *APIError {
	err := &APIError{Code: code, Message: message, Status: status}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = New("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrNotFound     = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// With copies a template error and attaches the cause as details.
func (e *APIError) With(cause error) *APIError {
	cp := *e
	if cause != nil {
		cp.Details = cause.Error()
	}
	return &cp
}

// Wrap returns err as an APIError, falling back to an internal error.
func Wrap(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal.With(err)
}

// Write renders err with the service's failed-status envelope.
func Write(w http.ResponseWriter, err error) {
	apiErr := Wrap(err)
	body := struct {
		Status string `json:"status"`
		*APIError
	}{Status: "failed", APIError: apiErr}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(body)
}
