// Package apperror gives the core a structured error shape collaborators (an
// HTTP layer, a CLI, a test) can translate without parsing message strings.
package apperror

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error is an application error carrying enough structure to translate into
// an HTTP response or a workflow retry decision.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// ToEchoError converts the error into an echo.HTTPError for a collaborator
// HTTP layer built on top of this core (transport itself is out of scope).
func (e *Error) ToEchoError() *echo.HTTPError {
	body := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return echo.NewHTTPError(e.HTTPStatus, map[string]any{"error": body})
}

// WithInternal returns a copy with an internal (wrapped) error attached.
func (e *Error) WithInternal(err error) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: e.Message, Internal: err, Details: e.Details}
}

// WithMessage returns a copy with a custom message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: message, Internal: e.Internal, Details: e.Details}
}

// WithDetails returns a copy with details attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{HTTPStatus: e.HTTPStatus, Code: e.Code, Message: e.Message, Internal: e.Internal, Details: details}
}

// New creates a new application error.
func New(status int, code, message string) *Error {
	return &Error{HTTPStatus: status, Code: code, Message: message}
}

var (
	ErrNotFound   = New(http.StatusNotFound, "not_found", "resource not found")
	ErrJobNotFound = New(http.StatusNotFound, "job_not_found", "job not found")
	ErrForbidden  = New(http.StatusForbidden, "forbidden", "access denied")
	ErrBadRequest = New(http.StatusBadRequest, "bad_request", "invalid request")
	ErrConflict   = New(http.StatusConflict, "conflict", "invalid state transition")
	ErrInternal   = New(http.StatusInternalServerError, "internal_error", "an internal error occurred")
)

// NewNotFound builds a not-found error for a named resource/id pair.
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

// NewConflict builds a conflict error, used for illegal job/chunk state transitions.
func NewConflict(message string) *Error {
	return ErrConflict.WithMessage(message)
}

// NewInternal wraps an internal error with a message.
func NewInternal(message string, err error) *Error {
	return &Error{HTTPStatus: http.StatusInternalServerError, Code: "internal_error", Message: message, Internal: err}
}

// NewForbidden builds a forbidden error with a custom message.
func NewForbidden(message string) *Error {
	return ErrForbidden.WithMessage(message)
}
