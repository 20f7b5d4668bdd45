package oauthmodel

import (
	"time"

	"github.com/jrsteele09/minu-sso/internal/utils"
)

// TokenResponse represents the JSON body returned by the Workers API token exchange.
// The shape follows the RFC 6749 token endpoint response the Minu services return.
type TokenResponse struct {
	// AccessToken is the token used against the Workers API.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType is always "Bearer" for the Minu services.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	// Example: 3600
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Only present when the exchange issues a refreshable grant.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the granted permissions, space separated.
	Scope string `json:"scope,omitempty"`
}

// Expiry converts ExpiresIn into an absolute timestamp relative to now.
// A zero ExpiresIn yields the zero time.
func (t *TokenResponse) Expiry(now time.Time) time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Token returns the access token or "" when absent.
func (t *TokenResponse) Token() string {
	return utils.Value(t.AccessToken)
}

// Refresh returns the refresh token or "" when absent.
func (t *TokenResponse) Refresh() string {
	return utils.Value(t.RefreshToken)
}

// ErrorResponse is the error body of the token, revocation and Workers endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
