package services

import (
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"golang.org/x/oauth2"
)

// ID identifies one of the Minu services this application federates identity with.
type ID string

const (
	Find  ID = "find"
	Frame ID = "frame"
	Build ID = "build"
	Keep  ID = "keep"
)

// Endpoint paths, relative to a service origin.
const (
	AuthorizePath = "/oauth/authorize"
	TokenPath     = "/oauth/token"
	RevokePath    = "/oauth/revoke"
	JWKSPath      = "/.well-known/jwks.json"
)

var allIDs = []ID{Find, Frame, Build, Keep}

// All returns every known service ID in a stable order.
func All() []ID {
	return slices.Clone(allIDs)
}

// Valid reports whether id is one of the fixed set of services.
func (id ID) Valid() bool {
	return slices.Contains(allIDs, id)
}

func (id ID) String() string {
	return string(id)
}

// Parse converts a raw service name into an ID.
func Parse(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", apperrors.Wrapf(apperrors.ErrUnknownService, "%q", s)
	}
	return id, nil
}

type Service struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	Origin       string   `json:"origin"`       // e.g. https://find.minu.best
	ClientID     string   `json:"clientId"`     // client_id registered with this service
	RedirectURIs []string `json:"redirectURIs"` // Allowed redirect targets for this application
	Scopes       []string `json:"scopes"`       // Allowed scopes for this client, empty means any
}

func (s *Service) endpoint(path string) string {
	return strings.TrimRight(s.Origin, "/") + path
}

// AuthorizeURL is the service's authorization endpoint
func (s *Service) AuthorizeURL() string {
	return s.endpoint(AuthorizePath)
}

// TokenURL is the service's token endpoint
func (s *Service) TokenURL() string {
	return s.endpoint(TokenPath)
}

// RevokeURL is the service's revocation endpoint
func (s *Service) RevokeURL() string {
	return s.endpoint(RevokePath)
}

// JWKSURL is where the service publishes its ID token signing keys
func (s *Service) JWKSURL() string {
	return s.endpoint(JWKSPath)
}

// Endpoint returns the x/oauth2 endpoint description. The client is public, so
// client_id travels in the form body rather than basic auth.
func (s *Service) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   s.AuthorizeURL(),
		TokenURL:  s.TokenURL(),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// OAuth2Config describes the service as a public oauth2 client of this application.
func (s *Service) OAuth2Config(redirectURI string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    s.ClientID,
		Endpoint:    s.Endpoint(),
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
}

// Issuer is the expected iss claim of the service's ID tokens
func (s *Service) Issuer() string {
	return strings.TrimRight(s.Origin, "/")
}

// HasScope checks if the client may request a specific scope from this service
func (s *Service) HasScope(scope string) bool {
	if len(s.Scopes) == 0 {
		return true
	}
	return slices.Contains(s.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this service
func (s *Service) ValidateScopes(scopes []string) error {
	for _, scope := range scopes {
		if strings.TrimSpace(scope) == "" || strings.ContainsAny(scope, " \t") {
			return apperrors.Wrapf(apperrors.ErrInvalidScope, "%q", scope)
		}
		if !s.HasScope(scope) {
			return apperrors.Wrapf(apperrors.ErrInvalidScope, "%q not allowed for %s", scope, s.ID)
		}
	}
	return nil
}

// AllowsRedirect reports whether redirectURI is registered for this service.
// An empty allow-list accepts any absolute http(s) URI.
func (s *Service) AllowsRedirect(redirectURI string) bool {
	if len(s.RedirectURIs) > 0 {
		return slices.Contains(s.RedirectURIs, redirectURI)
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
