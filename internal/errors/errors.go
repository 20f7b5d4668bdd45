package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Minu SSO client
var (
	// Service registry errors
	ErrUnknownService     = errors.New("unknown minu service")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")

	// Authorization request errors
	ErrInvalidCodeChallenge       = errors.New("invalid code challenge")
	ErrInvalidCodeChallengeMethod = errors.New("invalid code challenge method")
	ErrInvalidResponseType        = errors.New("unsupported response type")
	ErrInvalidVerifier            = errors.New("invalid code verifier")

	// State errors
	ErrInvalidState            = errors.New("invalid state")
	ErrUnsupportedStateVersion = errors.New("unsupported state version")
	ErrStateMismatch           = errors.New("state mismatch - possible CSRF attack")
	ErrNoPendingAuthorization  = errors.New("no pending authorization")

	// Callback errors
	ErrAccessDenied        = errors.New("access denied")
	ErrMalformedRequest    = errors.New("malformed authorization request")
	ErrMalformedCallback   = errors.New("malformed callback")
	ErrAuthorizationFailed = errors.New("authorization failed")

	// Token endpoint errors
	ErrNetwork        = errors.New("network error")
	ErrTokenEndpoint  = errors.New("token endpoint error")
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrInvalidToken   = errors.New("invalid token")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Category groups errors the way they are surfaced to the user.
type Category string

const (
	CategoryDenied           Category = "denied"
	CategoryMalformedRequest Category = "malformed_request"
	CategoryCSRF             Category = "csrf"
	CategoryNetwork          Category = "network"
	CategoryExpiredSession   Category = "expired_session"
	CategoryInternal         Category = "internal"
)

// Classify maps an error onto its user-facing category.
func Classify(err error) Category {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccessDenied):
		return CategoryDenied
	case errors.Is(err, ErrStateMismatch), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrUnsupportedStateVersion), errors.Is(err, ErrNoPendingAuthorization):
		return CategoryCSRF
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrMalformedCallback),
		errors.Is(err, ErrAuthorizationFailed), errors.Is(err, ErrUnknownService),
		errors.Is(err, ErrInvalidScope), errors.Is(err, ErrInvalidRedirectURI):
		return CategoryMalformedRequest
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrTokenEndpoint):
		return CategoryNetwork
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrNoRefreshToken):
		return CategoryExpiredSession
	}
	return CategoryInternal
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
