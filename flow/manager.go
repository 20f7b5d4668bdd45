// Package flow drives the login state machine: it starts attempts, completes them from
// the callback, and keeps the resulting session usable until it expires or is revoked.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/minu-sso/authorize"
	"github.com/jrsteele09/minu-sso/callback"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/internal/metrics"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/sessions"
	"github.com/jrsteele09/minu-sso/tokens"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultSessionTTL = time.Hour
	DefaultPendingTTL = 10 * time.Minute
)

// TokenClient is the remote side of the flow, implemented by tokens.Client.
type TokenClient interface {
	Exchange(ctx context.Context, svc *services.Service, code, verifier, redirectURI string) (*oauth2.Token, error)
	Refresh(ctx context.Context, svc *services.Service, refreshToken string) (*oauth2.Token, error)
	Revoke(ctx context.Context, svc *services.Service, token string, hint oauthmodel.TokenTypeHint) error
	ExchangeForWorkers(ctx context.Context, service services.ID, minuAccessToken string) (*oauthmodel.TokenResponse, error)
	VerifyIDToken(ctx context.Context, svc *services.Service, rawIDToken string) (*tokens.Identity, error)
}

var _ TokenClient = (*tokens.Client)(nil)

// Outcome is the result of completing an attempt.
type Outcome struct {
	Phase       Phase
	Service     services.ID
	RedirectURI string
	Record      *sessions.Record
	// Failure is set when the service returned an OAuth error
	Failure *callback.Failure
	Err     error
}

// Category is the user-facing class of a failed outcome
func (o *Outcome) Category() apperrors.Category {
	return apperrors.Classify(o.Err)
}

type Manager struct {
	registry services.Registry
	builder  *authorize.Builder
	tokens   TokenClient
	store    kv.Store
	sessions *sessions.Store

	sessionTTL time.Duration
	pendingTTL time.Duration
	scopes     []string
	now        func() time.Time
}

type ManagerOption func(m *Manager)

func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithSessionTTL sets the lifetime of tokens that carry no expiry of their own
func WithSessionTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.sessionTTL = ttl
	}
}

// WithPendingTTL bounds how long an attempt waits for its callback
func WithPendingTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.pendingTTL = ttl
	}
}

// WithDefaultScopes sets the scopes requested when Begin is given none
func WithDefaultScopes(scopes ...string) ManagerOption {
	return func(m *Manager) {
		m.scopes = scopes
	}
}

// NewManager creates a manager keeping its state in store.
func NewManager(registry services.Registry, tokenClient TokenClient, store kv.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry:   registry,
		tokens:     tokenClient,
		sessionTTL: DefaultSessionTTL,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.builder = authorize.NewBuilder(registry, authorize.WithDefaultScopes(m.scopes...))
	return m.WithStore(store)
}

// WithStore returns a copy of m bound to store. The server uses it to give each
// browser its own state.
func (m *Manager) WithStore(store kv.Store) *Manager {
	c := *m
	c.store = store
	c.sessions = sessions.NewStore(store, sessions.WithNowTime(m.now))
	return &c
}

// PendingTTL is how long an attempt waits for its callback
func (m *Manager) PendingTTL() time.Duration {
	return m.pendingTTL
}

// Sessions exposes the session store the manager writes to
func (m *Manager) Sessions() *sessions.Store {
	return m.sessions
}

// Begin starts an attempt: IDLE -> AUTHORIZING. Any earlier unfinished attempt is
// replaced. The caller navigates to the returned URL.
func (m *Manager) Begin(ctx context.Context, service services.ID, redirectURI string, scopes []string) (*authorize.Attempt, error) {
	attempt, err := m.builder.Build(service, redirectURI, scopes)
	if err != nil {
		return nil, fmt.Errorf("[Manager Begin] %w", err)
	}

	err = savePending(ctx, m.store, &pending{
		State:       attempt.State,
		Verifier:    attempt.Verifier,
		RedirectURI: redirectURI,
		StartedAt:   m.now(),
	}, m.pendingTTL)
	if err != nil {
		return nil, fmt.Errorf("[Manager Begin] %w", err)
	}

	metrics.AuthorizationsStarted.WithLabelValues(string(service)).Inc()
	log.Debug().Str("service", string(service)).Str("phase", string(PhaseAuthorizing)).Msg("authorization started")
	return attempt, nil
}

// Complete consumes the pending attempt with the callback query:
// CALLBACK_RECEIVED -> AUTHENTICATED | FAILED. The pending attempt is discarded
// whatever the result, so a callback can only be used once. A session is stored
// only on success. On failure the returned Outcome is non-nil and its Err is
// also returned.
func (m *Manager) Complete(ctx context.Context, query url.Values) (*Outcome, error) {
	p, err := loadPending(ctx, m.store)
	if err != nil {
		return nil, fmt.Errorf("[Manager Complete] %w", err)
	}
	if err := clearPending(ctx, m.store); err != nil {
		log.Err(err).Msg("failed to discard pending authorization")
	}

	var sentState, verifier, redirectURI string
	if p != nil {
		if m.now().Sub(p.StartedAt) > m.pendingTTL {
			log.Info().Time("started_at", p.StartedAt).Msg("pending authorization timed out")
		} else {
			sentState, verifier, redirectURI = p.State, p.Verifier, p.RedirectURI
		}
	}

	res, err := callback.Interpret(query, sentState)
	if err != nil {
		return m.fail(&Outcome{RedirectURI: redirectURI}, err)
	}
	log.Debug().Str("service", string(res.Service)).Str("kind", res.Kind.String()).Str("phase", string(PhaseCallbackReceived)).Msg("callback received")

	out := &Outcome{Service: res.Service, RedirectURI: redirectURI}
	var record *sessions.Record
	switch res.Kind {
	case callback.KindError:
		out.Failure = res.Failure
		return m.fail(out, res.Failure.Err())
	case callback.KindSuccess:
		record = &sessions.Record{
			Service:     res.Success.Service,
			AccessToken: res.Success.AccessToken,
			UserID:      res.Success.UserID,
			Plan:        res.Success.Plan,
			Status:      res.Success.Status,
			ExpiresAt:   m.expiryFor(res.Success.AccessToken, time.Time{}),
		}
	case callback.KindCode:
		record, err = m.exchangeCode(ctx, res, verifier, redirectURI)
		if err != nil {
			return m.fail(out, err)
		}
	}

	if err := m.sessions.SaveRecord(ctx, record); err != nil {
		return m.fail(out, apperrors.Wrapf(apperrors.ErrInternal, "[Manager Complete] save session: %v", err))
	}

	out.Phase = PhaseAuthenticated
	out.Record = record
	metrics.RecordCallback(string(out.Service), "success")
	log.Info().Str("service", string(out.Service)).Str("user_id", record.UserID).Time("expires_at", record.ExpiresAt).Msg("authenticated")
	return out, nil
}

func (m *Manager) exchangeCode(ctx context.Context, res *callback.Result, verifier, redirectURI string) (*sessions.Record, error) {
	svc, err := m.registry.Get(res.Service)
	if err != nil {
		return nil, err
	}

	tok, err := m.tokens.Exchange(ctx, svc, res.Code, verifier, redirectURI)
	if err != nil {
		return nil, err
	}

	record := &sessions.Record{
		Service:      svc.ID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		UserID:       tokens.ExtraString(tok, "user_id"),
		Plan:         tokens.ExtraString(tok, "plan"),
		Status:       tokens.ExtraString(tok, "status"),
		ExpiresAt:    m.expiryFor(tok.AccessToken, tok.Expiry),
	}

	if raw := tokens.IDToken(tok); raw != "" {
		id, err := m.tokens.VerifyIDToken(ctx, svc, raw)
		if err != nil {
			return nil, err
		}
		if record.UserID == "" {
			record.UserID = id.Subject
		}
		if record.Plan == "" {
			record.Plan = id.Plan
		}
		if record.Status == "" {
			record.Status = id.Status
		}
	}
	return record, nil
}

func (m *Manager) fail(out *Outcome, err error) (*Outcome, error) {
	out.Phase = PhaseFailed
	out.Err = err

	category := apperrors.Classify(err)
	metrics.RecordCallback(string(out.Service), string(category))

	switch category {
	case apperrors.CategoryCSRF:
		withFailure(log.Warn().Err(err), out).Msg("callback rejected, possible CSRF")
	case apperrors.CategoryDenied:
		withFailure(log.Info(), out).Msg("authorization declined by user")
	default:
		withFailure(log.Err(err), out).Str("category", string(category)).Msg("authorization failed")
	}
	return out, err
}

// withFailure adds the service and the OAuth error tuple, when there is one
func withFailure(e *zerolog.Event, out *Outcome) *zerolog.Event {
	e = e.Str("service", string(out.Service))
	if out.Failure != nil {
		e = e.Str("error", out.Failure.Error).Str("error_description", out.Failure.ErrorDescription)
	}
	return e
}

// expiryFor prefers the JWT exp claim, then the endpoint's expires_in, then the
// configured TTL.
func (m *Manager) expiryFor(accessToken string, fromResponse time.Time) time.Time {
	if exp, ok := tokens.ExpiryFromJWT(accessToken); ok {
		return exp
	}
	if !fromResponse.IsZero() {
		return fromResponse
	}
	return m.now().Add(m.sessionTTL)
}

// RequireSession returns the live session for service. An expired session is
// cleared and ErrSessionExpired returned; the caller sends the user back through
// Begin.
func (m *Manager) RequireSession(ctx context.Context, service services.ID) (*sessions.Record, error) {
	r, err := m.sessions.Load(ctx, service)
	if errors.Is(err, apperrors.ErrSessionExpired) {
		metrics.SessionsExpired.WithLabelValues(string(service)).Inc()
		log.Info().Str("service", string(service)).Msg("session expired, re-authentication required")
	}
	if err != nil {
		return nil, fmt.Errorf("[Manager RequireSession] %w", err)
	}
	return r, nil
}

// Refresh renews the access token of service with its refresh token. It is only
// ever invoked by the caller, typically after a 401. A rejected refresh token ends
// the session.
func (m *Manager) Refresh(ctx context.Context, service services.ID) (*sessions.Record, error) {
	svc, err := m.registry.Get(service)
	if err != nil {
		return nil, fmt.Errorf("[Manager Refresh] %w", err)
	}

	current, err := m.sessions.Peek(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("[Manager Refresh] %w", err)
	}
	if !current.HasRefreshToken() {
		return nil, apperrors.Wrapf(apperrors.ErrNoRefreshToken, "[Manager Refresh] %s", service)
	}

	tok, err := m.tokens.Refresh(ctx, svc, current.RefreshToken)
	if err != nil {
		var ee *tokens.EndpointError
		if errors.As(err, &ee) && ee.Code == oauthmodel.ErrorInvalidGrant {
			if clearErr := m.sessions.Clear(ctx, service); clearErr != nil {
				log.Err(clearErr).Str("service", string(service)).Msg("failed to clear rejected session")
			}
			return nil, apperrors.Wrapf(apperrors.ErrSessionExpired, "[Manager Refresh] %s: refresh token rejected", service)
		}
		return nil, fmt.Errorf("[Manager Refresh] %w", err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = current.RefreshToken
	}
	next := &sessions.Record{
		Service:      service,
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshToken,
		UserID:       current.UserID,
		Plan:         current.Plan,
		Status:       current.Status,
		ExpiresAt:    m.expiryFor(tok.AccessToken, tok.Expiry),
	}
	if err := m.sessions.SaveRecord(ctx, next); err != nil {
		return nil, fmt.Errorf("[Manager Refresh] %w", err)
	}

	log.Info().Str("service", string(service)).Time("expires_at", next.ExpiresAt).Msg("session refreshed")
	return next, nil
}

// Logout revokes the tokens of service and clears its session. Revocation is best
// effort; the local session is cleared even when the service cannot be reached.
func (m *Manager) Logout(ctx context.Context, service services.ID) error {
	record, err := m.sessions.Peek(ctx, service)
	switch {
	case errors.Is(err, apperrors.ErrSessionNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("[Manager Logout] %w", err)
	}

	if svc, err := m.registry.Get(service); err != nil {
		log.Err(err).Str("service", string(service)).Msg("cannot revoke tokens of unregistered service")
	} else {
		m.revoke(ctx, svc, record)
	}

	if err := m.sessions.Clear(ctx, service); err != nil {
		return fmt.Errorf("[Manager Logout] %w", err)
	}
	log.Info().Str("service", string(service)).Msg("logged out")
	return nil
}

func (m *Manager) revoke(ctx context.Context, svc *services.Service, record *sessions.Record) {
	revokeToken := func(token string, hint oauthmodel.TokenTypeHint) {
		if err := m.tokens.Revoke(ctx, svc, token, hint); err != nil {
			log.Err(err).Str("service", string(svc.ID)).Str("token_type", string(hint)).Msg("failed to revoke token")
		}
	}

	if record.RefreshToken != "" {
		revokeToken(record.RefreshToken, oauthmodel.RefreshTokenHint)
	}
	revokeToken(record.AccessToken, oauthmodel.AccessTokenHint)
}

// LogoutAll logs out of every service and drops any pending attempt.
func (m *Manager) LogoutAll(ctx context.Context) error {
	var errs []error
	for _, id := range services.All() {
		if err := m.Logout(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, m.sessions.ClearAll(ctx), clearPending(ctx, m.store))

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("[Manager LogoutAll] %w", err)
	}
	return nil
}

// ExchangeForWorkers trades the live session of service for a Workers API token.
func (m *Manager) ExchangeForWorkers(ctx context.Context, service services.ID) (*oauthmodel.TokenResponse, error) {
	record, err := m.RequireSession(ctx, service)
	if err != nil {
		return nil, err
	}
	resp, err := m.tokens.ExchangeForWorkers(ctx, service, record.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("[Manager ExchangeForWorkers] %w", err)
	}
	return resp, nil
}

// Phase reports the state of service: AUTHORIZING while an attempt for it is
// pending, AUTHENTICATED while its session is live, IDLE otherwise.
func (m *Manager) Phase(ctx context.Context, service services.ID) Phase {
	p, err := loadPending(ctx, m.store)
	if err != nil {
		log.Err(err).Msg("failed to read pending authorization")
	}
	if p != nil && m.now().Sub(p.StartedAt) <= m.pendingTTL && pendingService(p) == service {
		return PhaseAuthorizing
	}
	if !m.sessions.IsExpired(ctx, service) {
		return PhaseAuthenticated
	}
	return PhaseIdle
}
