// Package tokens talks to the endpoints behind a login: the Minu token and
// revocation endpoints, their JWKS, and the Workers API token exchange.
// Nothing here retries; callers decide whether to try again.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/internal/metrics"
	"github.com/jrsteele09/minu-sso/services"
	"golang.org/x/oauth2"
)

const defaultTimeout = 15 * time.Second

// Operation names used in errors and metrics.
const (
	opExchange = "exchange"
	opRefresh  = "refresh"
	opRevoke   = "revoke"
	opWorkers  = "workers_exchange"
)

// EndpointError is a 4xx/5xx answer from a remote endpoint.
type EndpointError struct {
	Operation   string
	StatusCode  int
	Code        string
	Description string
}

func (e *EndpointError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	return msg
}

// Unwrap marks 4xx answers as rejected requests too. 5xx answers are reported
// as the endpoint being unavailable.
func (e *EndpointError) Unwrap() []error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return []error{apperrors.ErrTokenEndpoint, apperrors.ErrMalformedRequest}
	}
	return []error{apperrors.ErrTokenEndpoint}
}

type Client struct {
	httpClient *http.Client
	workersURL string
	now        func() time.Time

	verifiers map[services.ID]*oidc.IDTokenVerifier
	lock      sync.RWMutex
}

type ClientOption func(c *Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithWorkersURL sets the base URL of the Workers API, e.g. https://api.ideaonaction.ai
func WithWorkersURL(u string) ClientOption {
	return func(c *Client) {
		c.workersURL = u
	}
}

func WithNowTime(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
		verifiers:  make(map[services.ID]*oidc.IDTokenVerifier),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange trades an authorization code and its PKCE verifier for tokens.
func (c *Client) Exchange(ctx context.Context, svc *services.Service, code, verifier, redirectURI string) (*oauth2.Token, error) {
	start := c.now()
	tok, err := svc.OAuth2Config(redirectURI, nil).Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	c.record(opExchange, start, err)
	if err != nil {
		return nil, classify(opExchange, err)
	}
	return tok, nil
}

// Refresh obtains a new access token with refreshToken. The returned token keeps
// refreshToken when the endpoint does not rotate it.
func (c *Client) Refresh(ctx context.Context, svc *services.Service, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNoRefreshToken, "[Client Refresh] %s", svc.ID)
	}

	start := c.now()
	tok, err := svc.OAuth2Config("", nil).TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	c.record(opRefresh, start, err)
	if err != nil {
		return nil, classify(opRefresh, err)
	}
	return tok, nil
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) record(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.RecordTokenRequest(op, result, c.now().Sub(start).Seconds())
}

// classify turns transport failures into ErrNetwork and endpoint rejections into
// an EndpointError.
func classify(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ee := &EndpointError{
			Operation:   op,
			Code:        re.ErrorCode,
			Description: re.ErrorDescription,
		}
		if re.Response != nil {
			ee.StatusCode = re.Response.StatusCode
		}
		return fmt.Errorf("[Client %s] %w", op, ee)
	}
	return fmt.Errorf("[Client %s] %w: %w", op, apperrors.ErrNetwork, err)
}

// IDToken returns the raw id_token carried by tok, if any.
func IDToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	raw, _ := tok.Extra("id_token").(string)
	return raw
}

// ExtraString returns a string field of the token response beyond the RFC 6749 set.
func ExtraString(tok *oauth2.Token, key string) string {
	if tok == nil {
		return ""
	}
	v, _ := tok.Extra(key).(string)
	return v
}
