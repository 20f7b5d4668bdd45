// Package authorize builds Authorization Code + PKCE requests against the Minu services.
package authorize

import (
	"fmt"

	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/pkce"
	"github.com/jrsteele09/minu-sso/services"
	"golang.org/x/oauth2"
)

// Attempt is everything produced for one login attempt. Verifier and State must be
// retained by the caller until the callback arrives.
type Attempt struct {
	Request  *oauthmodel.AuthorizationRequest
	URL      string
	Verifier string
	State    string
}

// Builder creates authorization URLs for registered services.
type Builder struct {
	registry      services.Registry
	defaultScopes []string
}

type BuilderOption func(b *Builder)

// WithDefaultScopes sets the scopes requested when the caller asks for none.
func WithDefaultScopes(scopes ...string) BuilderOption {
	return func(b *Builder) {
		b.defaultScopes = scopes
	}
}

func NewBuilder(registry services.Registry, opts ...BuilderOption) *Builder {
	b := &Builder{
		registry: registry,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build generates a fresh PKCE pair and state and returns the authorization URL for
// service. The service must be registered and the scopes allowed for it.
func (b *Builder) Build(service services.ID, redirectURI string, scopes []string) (*Attempt, error) {
	svc, err := b.registry.Get(service)
	if err != nil {
		return nil, fmt.Errorf("[Builder Build] %w", err)
	}

	if len(scopes) == 0 {
		scopes = b.defaultScopes
	}

	pair := pkce.NewPair()
	state, err := pkce.GenerateState(svc.ID, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("[Builder Build] %w", err)
	}

	req := &oauthmodel.AuthorizationRequest{
		ClientID:            svc.ClientID,
		ResponseType:        oauthmodel.CodeResponseType,
		RedirectURI:         redirectURI,
		Scope:               scopes,
		State:               state,
		CodeChallenge:       pair.Challenge,
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
	}
	if err := req.ValidateWithService(svc); err != nil {
		return nil, fmt.Errorf("[Builder Build] %s: %w", svc.ID, err)
	}

	return &Attempt{
		Request:  req,
		URL:      svc.OAuth2Config(redirectURI, scopes).AuthCodeURL(state, oauth2.S256ChallengeOption(pair.Verifier)),
		Verifier: pair.Verifier,
		State:    state,
	}, nil
}
