// Package errors defines the closed error taxonomy crossing the gateway core.
//
// Every failure coming back from an upstream authority is mapped into
// exactly one *Error before it reaches a caller; no raw upstream payload
// or transport error type crosses a component boundary unmodified.
package errors

import (
	"fmt"
)

// Error types
const (
	// ErrInvalidCredentials is returned when the upstream authority rejects
	// a presented primary credential (login password or device secret).
	ErrInvalidCredentials = "invalid_credentials"

	// ErrUnauthenticated is returned when no live session exists for the caller.
	ErrUnauthenticated = "unauthenticated"

	// ErrForbidden is returned when the credential is valid but insufficient.
	ErrForbidden = "forbidden"

	// ErrNotFound is returned when the upstream authority reports no such resource.
	ErrNotFound = "not_found"

	// ErrInvalidInput is returned when a request fails validation, locally or upstream.
	ErrInvalidInput = "invalid_input"

	// ErrUpstreamUnavailable is returned when an upstream call could not be
	// completed due to a transport failure. Retryable.
	ErrUpstreamUnavailable = "upstream_unavailable"

	// ErrUpstreamInconsistent is returned when an upstream authority reports
	// success but the response cannot be trusted (e.g. a credential rotation
	// that produced no usable secret). Retryable.
	ErrUpstreamInconsistent = "upstream_inconsistent"

	// ErrUpstream is returned for any other upstream failure. Carries the
	// upstream status for observability but never the raw body.
	ErrUpstream = "upstream_error"
)

// Error represents a normalized failure in the gateway.
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Status is the upstream HTTP status that produced this error, if any.
	Status int

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidCredentialsError creates a new invalid credentials error
func NewInvalidCredentialsError(message string, cause error) *Error {
	return NewError(ErrInvalidCredentials, message, cause)
}

// NewUnauthenticatedError creates a new unauthenticated error
func NewUnauthenticatedError(message string, cause error) *Error {
	return NewError(ErrUnauthenticated, message, cause)
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string, cause error) *Error {
	return NewError(ErrForbidden, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *Error {
	return NewError(ErrNotFound, message, cause)
}

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message string, cause error) *Error {
	return NewError(ErrInvalidInput, message, cause)
}

// NewUpstreamUnavailableError creates a new upstream unavailable error
func NewUpstreamUnavailableError(message string, cause error) *Error {
	return NewError(ErrUpstreamUnavailable, message, cause)
}

// NewUpstreamInconsistentError creates a new upstream inconsistent error
func NewUpstreamInconsistentError(message string, cause error) *Error {
	return NewError(ErrUpstreamInconsistent, message, cause)
}

// NewUpstreamError creates a new generic upstream error carrying the raw status
func NewUpstreamError(status int, message string) *Error {
	return &Error{
		Type:    ErrUpstream,
		Message: message,
		Status:  status,
	}
}

// IsInvalidCredentials checks if the error is an invalid credentials error
func IsInvalidCredentials(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidCredentials
}

// IsUnauthenticated checks if the error is an unauthenticated error
func IsUnauthenticated(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUnauthenticated
}

// IsForbidden checks if the error is a forbidden error
func IsForbidden(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrForbidden
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrNotFound
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrInvalidInput
}

// IsUpstreamUnavailable checks if the error is an upstream unavailable error
func IsUpstreamUnavailable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUpstreamUnavailable
}

// IsUpstreamInconsistent checks if the error is an upstream inconsistent error
func IsUpstreamInconsistent(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUpstreamInconsistent
}

// IsUpstream checks if the error is a generic upstream error
func IsUpstream(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Type == ErrUpstream
}

// IsRetryable reports whether a caller may retry the failed operation
// without new input.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && (e.Type == ErrUpstreamUnavailable || e.Type == ErrUpstreamInconsistent)
}
