// Package serviceerr defines the error taxonomy returned by the public API.
// Codes follow the RFC 6749 error registry where one exists, plus a few
// local codes for conditions the RFC does not name.
package serviceerr

import "net/http"

type Code string

// RFC 6749 authorization endpoint errors.
const (
	CodeInvalidRequest          Code = "invalid_request"
	CodeUnauthorizedClient      Code = "unauthorized_client"
	CodeAccessDenied            Code = "access_denied"
	CodeUnsupportedResponseType Code = "unsupported_response_type"
	CodeInvalidScope            Code = "invalid_scope"
	CodeServerError             Code = "server_error"
	CodeTemporarilyUnavailable  Code = "temporarily_unavailable"
)

// RFC 6749 token endpoint errors.
const (
	CodeInvalidClient        Code = "invalid_client"
	CodeInvalidGrant         Code = "invalid_grant"
	CodeUnsupportedGrantType Code = "unsupported_grant_type"
)

// Local codes.
const (
	CodeUnknown             Code = "unknown"
	CodeConflict            Code = "conflict"
	CodeNotFound            Code = "not_found"
	CodeFingerprintMismatch Code = "fingerprint_mismatch"
	CodeStateExpired        Code = "state_expired"
	CodeInvalidCSRFToken    Code = "invalid_csrf_token"
)

type Error struct {
	Err         Code
	Description string
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Err)
	}

	return string(e.Err) + ": " + e.Description
}

// Is matches errors by code so that errors.Is works against the sentinels
// below regardless of the description.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)

	return ok && other.Err == e.Err
}

// HTTPStatus maps the error code to the HTTP status the API responds with.
// Unrecognised codes map to 500 so that a missing case never leaks a 200.
func (e *Error) HTTPStatus() int {
	switch e.Err {
	case CodeInvalidRequest, CodeUnsupportedResponseType, CodeInvalidScope,
		CodeInvalidClient, CodeInvalidGrant, CodeUnsupportedGrantType:
		return http.StatusBadRequest
	case CodeUnauthorizedClient:
		return http.StatusUnauthorized
	case CodeAccessDenied, CodeFingerprintMismatch, CodeInvalidCSRFToken:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeStateExpired:
		return http.StatusGone
	case CodeTemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	// RFC 6749 authorization errors.
	ErrInvalidRequest          = &Error{Err: CodeInvalidRequest}
	ErrUnauthorizedClient      = &Error{Err: CodeUnauthorizedClient}
	ErrAccessDenied            = &Error{Err: CodeAccessDenied}
	ErrUnsupportedResponseType = &Error{Err: CodeUnsupportedResponseType}
	ErrInvalidScope            = &Error{Err: CodeInvalidScope}
	ErrServerError             = &Error{Err: CodeServerError}
	ErrTemporarilyUnavailable  = &Error{Err: CodeTemporarilyUnavailable}

	// RFC 6749 token errors.
	ErrInvalidClient        = &Error{Err: CodeInvalidClient}
	ErrInvalidGrant         = &Error{Err: CodeInvalidGrant}
	ErrUnsupportedGrantType = &Error{Err: CodeUnsupportedGrantType}

	// Local errors.
	ErrUnknown             = &Error{Err: CodeUnknown, Description: "unknown error"}
	ErrConflict            = &Error{Err: CodeConflict, Description: "already exists"}
	ErrNotFound            = &Error{Err: CodeNotFound, Description: "not found"}
	ErrFingerprintMismatch = &Error{Err: CodeFingerprintMismatch, Description: "fingerprint mismatch"}
	ErrStateExpired        = &Error{Err: CodeStateExpired, Description: "state expired"}
	ErrInvalidCSRFToken    = &Error{Err: CodeInvalidCSRFToken, Description: "invalid csrf token"}
	ErrUnauthorized        = &Error{Err: CodeUnauthorizedClient, Description: "unauthorized"}
)
