package auth

import (
	"fmt"
	"net/http"
)

// Code classifies an authentication or tenant-resolution failure.
type Code string

const (
	CodeMissingToken       Code = "missing_token"
	CodeInvalidToken       Code = "invalid_token"
	CodeAmbiguousToken     Code = "ambiguous_token"
	CodeTenantNotFound     Code = "tenant_not_found"
	CodeConflictingSignals Code = "conflicting_signals"
	CodeTenantInactive     Code = "tenant_inactive"
)

// AuthError is a terminal failure of request identity resolution. Adapters
// translate it into their protocol's native error envelope.
type AuthError struct {
	Code Code

	// Hint is the caller-supplied value the error is about, such as the
	// tenant named in the explicit header. Only TenantNotFound exposes it.
	Hint string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinel errors, matched by code with errors.Is.
var (
	ErrMissingToken       = &AuthError{Code: CodeMissingToken}
	ErrInvalidToken       = &AuthError{Code: CodeInvalidToken}
	ErrAmbiguousToken     = &AuthError{Code: CodeAmbiguousToken}
	ErrTenantNotFound     = &AuthError{Code: CodeTenantNotFound}
	ErrConflictingSignals = &AuthError{Code: CodeConflictingSignals}
	ErrTenantInactive     = &AuthError{Code: CodeTenantInactive}
)

func (e *AuthError) Error() string {
	msg := "auth: " + string(e.Code)
	if e.Hint != "" {
		msg += fmt.Sprintf(" (%q)", e.Hint)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// PublicMessage returns the text shown to the caller. Credential failures
// share one message so responses never reveal which tenants exist.
func (e *AuthError) PublicMessage() string {
	switch e.Code {
	case CodeMissingToken:
		return "authentication required: no access token was supplied"
	case CodeAmbiguousToken:
		return "authentication failed: this access token is misconfigured on the server, contact the publisher"
	case CodeTenantNotFound:
		return fmt.Sprintf("tenant %q not found", e.Hint)
	case CodeConflictingSignals:
		return "request addresses more than one tenant"
	default:
		return "authentication failed: invalid access token"
	}
}

// HTTPStatus maps the code to the status an HTTP-based adapter should return.
func (e *AuthError) HTTPStatus() int {
	switch e.Code {
	case CodeTenantNotFound:
		return http.StatusNotFound
	case CodeConflictingSignals:
		return http.StatusBadRequest
	case CodeAmbiguousToken:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

func newError(code Code, hint string, err error) *AuthError {
	return &AuthError{Code: code, Hint: hint, Err: err}
}
