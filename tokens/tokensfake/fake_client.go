package tokensfake

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/tokens"
	"golang.org/x/oauth2"
)

// Revocation records a call to Revoke
type Revocation struct {
	Service services.ID
	Token   string
	Hint    oauthmodel.TokenTypeHint
}

// FakeClient is an in-memory stand-in for tokens.Client.
// Codes and refresh tokens are looked up in the maps; anything unknown is rejected
// with invalid_grant.
type FakeClient struct {
	Codes         map[string]*oauth2.Token
	RefreshTokens map[string]*oauth2.Token
	Identity      *tokens.Identity
	WorkersTokens map[string]string // minu access token -> workers token

	// Err, when set, is returned by every call
	Err error

	lock      sync.Mutex
	revoked   []Revocation
	exchanges []string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Codes:         make(map[string]*oauth2.Token),
		RefreshTokens: make(map[string]*oauth2.Token),
		WorkersTokens: make(map[string]string),
	}
}

func invalidGrant(op string) error {
	return &tokens.EndpointError{Operation: op, StatusCode: 400, Code: "invalid_grant"}
}

func (c *FakeClient) Exchange(_ context.Context, _ *services.Service, code, verifier, _ string) (*oauth2.Token, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.exchanges = append(c.exchanges, code+":"+verifier)
	if c.Err != nil {
		return nil, c.Err
	}
	tok, ok := c.Codes[code]
	if !ok || verifier == "" {
		return nil, invalidGrant("exchange")
	}
	return tok, nil
}

func (c *FakeClient) Refresh(_ context.Context, svc *services.Service, refreshToken string) (*oauth2.Token, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if refreshToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNoRefreshToken, "%s", svc.ID)
	}
	tok, ok := c.RefreshTokens[refreshToken]
	if !ok {
		return nil, invalidGrant("refresh")
	}
	return tok, nil
}

func (c *FakeClient) Revoke(_ context.Context, svc *services.Service, token string, hint oauthmodel.TokenTypeHint) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Err != nil {
		return c.Err
	}
	c.revoked = append(c.revoked, Revocation{Service: svc.ID, Token: token, Hint: hint})
	return nil
}

func (c *FakeClient) ExchangeForWorkers(_ context.Context, _ services.ID, minuAccessToken string) (*oauthmodel.TokenResponse, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	workers, ok := c.WorkersTokens[minuAccessToken]
	if !ok {
		return nil, &tokens.EndpointError{Operation: "workers_exchange", StatusCode: 401, Code: "invalid_token"}
	}
	return &oauthmodel.TokenResponse{AccessToken: &workers, TokenType: "Bearer", ExpiresIn: 900}, nil
}

func (c *FakeClient) VerifyIDToken(_ context.Context, svc *services.Service, _ string) (*tokens.Identity, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Identity == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "%s", svc.ID)
	}
	id := *c.Identity
	return &id, nil
}

// Revoked returns the revocations made so far
func (c *FakeClient) Revoked() []Revocation {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]Revocation(nil), c.revoked...)
}

// Exchanges returns "code:verifier" for every Exchange call
func (c *FakeClient) Exchanges() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]string(nil), c.exchanges...)
}
