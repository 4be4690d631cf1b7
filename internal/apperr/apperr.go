// Package apperr defines the error taxonomy shared by the store, the HTTP
// API, and the sync client.
//
// Errors are classified with errors.Is() against the sentinel values:
//
//	if errors.Is(err, apperr.ErrNotFound) {
//	    // referenced id did not resolve, likely a stale cache
//	}
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation indicates missing or malformed required input.
	// User-fixable; surfaced inline by callers.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates a referenced id did not resolve to a live
	// record. Typically means the caller's view of the data is stale.
	ErrNotFound = errors.New("not found")

	// ErrConnectivity indicates the transport was unreachable. The sync
	// client degrades to cached data instead of failing hard.
	ErrConnectivity = errors.New("connection failed")

	// ErrInternal indicates an unexpected backend fault. Detail is logged
	// server-side and never leaked to clients.
	ErrInternal = errors.New("internal error")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Connectivity wraps a transport error as ErrConnectivity, preserving the
// cause for diagnostics.
func Connectivity(err error) error {
	return fmt.Errorf("%w: %v", ErrConnectivity, err)
}

// Internal wraps an unexpected fault as ErrInternal. The cause is kept in
// the message for server-side logs; HTTPMessage strips it before it reaches
// a client.
func Internal(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

// HTTPStatus maps an error to its HTTP response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HTTPMessage returns the client-facing message for an error. Internal
// faults collapse to a generic message so backend detail never leaks.
func HTTPMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) {
		return err.Error()
	}
	return "internal error"
}
