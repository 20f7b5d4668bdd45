package oauthmodel

import (
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/services"
)

// S256 challenges are always 43 base64url characters.
const s256ChallengeLength = 43

// AuthorizationRequest holds the query parameters sent to a Minu service's /oauth/authorize endpoint.
// It is built fresh for every login attempt and never persisted.
type AuthorizationRequest struct {
	// ClientID identifies this application to the Minu service.
	// Example: "idea-on-action"
	ClientID string

	// ResponseType is always "code".
	ResponseType ResponseType

	// RedirectURI is where the service sends the browser back to.
	// Example: "https://www.ideaonaction.ai/auth/minu/callback"
	// Validated against: services.Service.RedirectURIs
	RedirectURI string

	// Scope is the ordered list of requested scopes, sent space-joined.
	// Example: ["openid", "profile", "email"]
	Scope []string

	// State is the encoded CSRF state token (see pkce.GenerateState).
	// The callback must echo it back byte for byte.
	State string

	// CodeChallenge is BASE64URL(SHA256(code_verifier)).
	// Length: 43 characters
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod CodeMethodType
}

// Values encodes the request as authorization endpoint query parameters.
func (r *AuthorizationRequest) Values() url.Values {
	v := url.Values{}
	v.Set(ParamClientID, r.ClientID)
	v.Set(ParamResponseType, string(r.ResponseType))
	v.Set(ParamRedirectURI, r.RedirectURI)
	if len(r.Scope) > 0 {
		v.Set(ParamScope, strings.Join(r.Scope, " "))
	}
	v.Set(ParamState, r.State)
	v.Set(ParamCodeChallenge, r.CodeChallenge)
	v.Set(ParamCodeChallengeMethod, string(r.CodeChallengeMethod))
	return v
}

// ValidateWithService validates the request against the target service's registration.
func (r *AuthorizationRequest) ValidateWithService(svc *services.Service) error {
	if r.ClientID == "" || r.ClientID != svc.ClientID {
		return apperrors.Wrapf(apperrors.ErrMalformedRequest, "client_id %q not registered with %s", r.ClientID, svc.ID)
	}

	if r.ResponseType != CodeResponseType {
		return apperrors.ErrInvalidResponseType
	}

	if r.CodeChallengeMethod != CodeMethodTypeS256 {
		return apperrors.ErrInvalidCodeChallengeMethod
	}

	if len(r.CodeChallenge) != s256ChallengeLength {
		return apperrors.ErrInvalidCodeChallenge
	}

	if strings.TrimSpace(r.State) == "" {
		return apperrors.ErrInvalidState
	}

	if !svc.AllowsRedirect(r.RedirectURI) {
		return apperrors.Wrapf(apperrors.ErrInvalidRedirectURI, "%q", r.RedirectURI)
	}

	return svc.ValidateScopes(r.Scope)
}
