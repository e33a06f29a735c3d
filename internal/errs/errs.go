// Package errs defines the error taxonomy shared across the service.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Error is a typed service error carrying the HTTP status it maps to and an
// optional remediation hint surfaced to the caller.
type Error struct {
	Name    string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Hint    string `json:"hint,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func Validation(format string, args ...any) *Error {
	return &Error{
		Name:    "ValidationError",
		Message: fmt.Sprintf(format, args...),
		Code:    http.StatusBadRequest,
	}
}

func Geometry(format string, args ...any) *Error {
	return &Error{
		Name:    "GeometryError",
		Message: fmt.Sprintf(format, args...),
		Code:    http.StatusBadRequest,
	}
}

// Backend wraps a failure from the external compute service. The raw error is
// kept as the cause so callers can unwrap it, but the message sent to clients
// is the contextual one.
func Backend(cause error, format string, args ...any) *Error {
	return &Error{
		Name:    "BackendError",
		Message: fmt.Sprintf(format, args...),
		Code:    http.StatusBadGateway,
		Hint:    "check backend service status and credentials",
		cause:   cause,
	}
}

func JobNotFound(jobID string) *Error {
	return &Error{
		Name:    "JobNotFoundError",
		Message: fmt.Sprintf("job %s not found", jobID),
		Code:    http.StatusNotFound,
		Hint:    "check the job id; the job may have expired",
	}
}

// RateLimited is declared for parity with the configured threshold; nothing
// enforces it yet.
func RateLimited() *Error {
	return &Error{
		Name:    "RateLimitError",
		Message: "rate limit exceeded",
		Code:    http.StatusTooManyRequests,
	}
}

// Write serializes err as the JSON error envelope. Unrecognized errors become
// a generic 500 without leaking internals.
func Write(w http.ResponseWriter, logger *slog.Logger, err error) {
	var se *Error
	if !errors.As(err, &se) {
		if logger != nil {
			logger.Error("unhandled error", "err", err)
		}
		se = &Error{
			Name:    "InternalError",
			Message: "an unexpected error occurred",
			Code:    http.StatusInternalServerError,
		}
	} else if se.Code >= 500 && logger != nil {
		logger.Error("request failed", "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.Code)
	_ = json.NewEncoder(w).Encode(se)
}
