package errors

import (
	"net/http"
)

// FromStatus maps an upstream HTTP status to a normalized error. It is the
// single mapping applied at every upstream call site performed with a
// management credential; divergent per-site mappings for the same status
// are a defect.
//
// The upstream validation message is carried verbatim only for 400/422 so
// callers can correct their input. Other statuses carry a short message and
// the raw status, never the raw body.
func FromStatus(status int, message string) *Error {
	switch status {
	case http.StatusUnauthorized:
		return &Error{Type: ErrUnauthenticated, Message: message, Status: status}
	case http.StatusForbidden:
		return &Error{Type: ErrForbidden, Message: message, Status: status}
	case http.StatusNotFound:
		return &Error{Type: ErrNotFound, Message: message, Status: status}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{Type: ErrInvalidInput, Message: message, Status: status}
	default:
		return NewUpstreamError(status, message)
	}
}

// FromCredentialStatus maps an upstream HTTP status for a call site where
// the caller presented a primary credential directly (login exchange,
// device trust-token mint). There an upstream rejection means the
// credential itself was bad, which callers must not conflate with a
// missing session.
func FromCredentialStatus(status int, message string) *Error {
	switch status {
	case http.StatusUnauthorized, http.StatusBadRequest:
		return &Error{Type: ErrInvalidCredentials, Message: message, Status: status}
	default:
		return FromStatus(status, message)
	}
}

// StatusCode maps a normalized error back to the HTTP status the boundary
// should answer with. This is the only place kinds become statuses.
func StatusCode(err error) int {
	e, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Type {
	case ErrInvalidCredentials, ErrUnauthenticated:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case ErrUpstreamInconsistent, ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
