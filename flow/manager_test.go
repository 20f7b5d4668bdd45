package flow_test

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/minu-sso/flow"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/kv/memory"
	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/sessions"
	"github.com/jrsteele09/minu-sso/tokens"
	"github.com/jrsteele09/minu-sso/tokens/tokensfake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const redirectURI = "https://www.ideaonaction.ai/auth/minu/callback"

type testEnv struct {
	manager *flow.Manager
	store   *memory.Store
	tokens  *tokensfake.FakeClient
	now     time.Time
}

func newEnv(t *testing.T, opts ...flow.ManagerOption) *testEnv {
	t.Helper()
	reg, err := services.NewRegistryFromOrigins("idea-on-action", nil, []string{"openid", "profile", "email", "offline_access"}, map[string]string{
		"find":  "https://find.minu.best",
		"frame": "https://frame.minu.best",
		"build": "https://build.minu.best",
		"keep":  "https://keep.minu.best",
	})
	require.NoError(t, err)

	env := &testEnv{
		store:  memory.New(),
		tokens: tokensfake.NewFakeClient(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]flow.ManagerOption{
		flow.WithNowTime(func() time.Time { return env.now }),
		flow.WithDefaultScopes("openid", "profile", "email"),
	}, opts...)
	env.manager = flow.NewManager(reg, env.tokens, env.store, opts...)
	return env
}

func (e *testEnv) begin(t *testing.T, svc services.ID) string {
	t.Helper()
	attempt, err := e.manager.Begin(context.Background(), svc, redirectURI, nil)
	require.NoError(t, err)
	return attempt.State
}

func successQuery(state string) url.Values {
	return url.Values{
		"access_token": {"tok123"},
		"service":      {"find"},
		"user_id":      {"u1"},
		"plan":         {"Pro"},
		"status":       {"active"},
		"state":        {state},
	}
}

func TestBeginStoresPendingAttempt(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	require.Equal(t, flow.PhaseIdle, env.manager.Phase(ctx, services.Find))

	attempt, err := env.manager.Begin(ctx, services.Find, redirectURI, nil)
	require.NoError(t, err)

	u, err := url.Parse(attempt.URL)
	require.NoError(t, err)
	require.Equal(t, "openid profile email", u.Query().Get("scope"))
	require.Equal(t, "S256", u.Query().Get("code_challenge_method"))

	for key, want := range map[string]string{
		flow.KeyPendingState:       attempt.State,
		flow.KeyPendingVerifier:    attempt.Verifier,
		flow.KeyPendingRedirectURI: redirectURI,
		flow.KeyPendingStartedAt:   "2026-03-01T12:00:00Z",
	} {
		v, err := env.store.Get(ctx, key)
		require.NoError(t, err, key)
		require.Equal(t, want, v, key)
	}

	require.Equal(t, flow.PhaseAuthorizing, env.manager.Phase(ctx, services.Find))
	require.Equal(t, flow.PhaseIdle, env.manager.Phase(ctx, services.Frame))
}

func TestBeginUnknownService(t *testing.T) {
	env := newEnv(t)
	_, err := env.manager.Begin(context.Background(), "other", redirectURI, nil)
	require.ErrorIs(t, err, apperrors.ErrUnknownService)
	require.Equal(t, 0, env.store.Len())
}

func TestCompleteSuccess(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	state := env.begin(t, services.Find)

	out, err := env.manager.Complete(ctx, successQuery(state))
	require.NoError(t, err)
	require.Equal(t, flow.PhaseAuthenticated, out.Phase)
	require.Equal(t, services.Find, out.Service)
	require.Equal(t, redirectURI, out.RedirectURI)
	require.Equal(t, "Pro", out.Record.Plan)
	require.Equal(t, env.now.Add(flow.DefaultSessionTTL), out.Record.ExpiresAt, "opaque token gets the default ttl")

	record, err := env.manager.RequireSession(ctx, services.Find)
	require.NoError(t, err)
	require.Equal(t, "tok123", record.AccessToken)
	require.Equal(t, flow.PhaseAuthenticated, env.manager.Phase(ctx, services.Find))

	_, err = env.store.Get(ctx, flow.KeyPendingVerifier)
	require.ErrorIs(t, err, kv.ErrNotFound, "verifier discarded after callback")

	_, err = env.manager.Complete(ctx, successQuery(state))
	require.ErrorIs(t, err, apperrors.ErrNoPendingAuthorization, "callback cannot be replayed")
}

func TestCompleteUsesJWTExpiry(t *testing.T) {
	env := newEnv(t)
	state := env.begin(t, services.Find)

	exp := env.now.Add(15 * time.Minute)
	jwt, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	q := successQuery(state)
	q.Set("access_token", jwt)
	out, err := env.manager.Complete(context.Background(), q)
	require.NoError(t, err)
	require.True(t, exp.Equal(out.Record.ExpiresAt))
}

func TestCompleteStateMismatchSavesNothing(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	env.begin(t, services.Find)

	forged := newEnv(t).begin(t, services.Find)
	out, err := env.manager.Complete(ctx, successQuery(forged))
	require.ErrorIs(t, err, apperrors.ErrStateMismatch)
	require.Equal(t, flow.PhaseFailed, out.Phase)
	require.Equal(t, apperrors.CategoryCSRF, out.Category())

	require.True(t, env.manager.Sessions().IsExpired(ctx, services.Find))
	require.Equal(t, 0, env.store.Len(), "no session written and pending attempt discarded")
}

func TestCompleteAccessDenied(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	state := env.begin(t, services.Find)

	var logs bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&logs)
	t.Cleanup(func() { log.Logger = previous })

	out, err := env.manager.Complete(ctx, url.Values{
		"error":             {"access_denied"},
		"error_description": {"The user denied the request"},
		"state":             {state},
	})
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)
	require.Equal(t, flow.PhaseFailed, out.Phase)
	require.Equal(t, "access_denied", out.Failure.Error)
	require.Equal(t, apperrors.CategoryDenied, out.Category())

	require.Contains(t, logs.String(), `"error":"access_denied"`)
	require.Contains(t, logs.String(), `"error_description":"The user denied the request"`)

	require.True(t, env.manager.Sessions().IsExpired(ctx, services.Find))
	require.Equal(t, 0, env.store.Len())
}

func TestCompletePendingTimedOut(t *testing.T) {
	env := newEnv(t, flow.WithPendingTTL(time.Minute))
	state := env.begin(t, services.Find)
	env.now = env.now.Add(2 * time.Minute)

	_, err := env.manager.Complete(context.Background(), successQuery(state))
	require.ErrorIs(t, err, apperrors.ErrNoPendingAuthorization)
}

func TestCompleteCodeExchange(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	attempt, err := env.manager.Begin(ctx, services.Frame, redirectURI, nil)
	require.NoError(t, err)

	env.tokens.Codes["code-1"] = (&oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       env.now.Add(30 * time.Minute),
	}).WithExtra(map[string]any{"id_token": "id-token", "plan": "Team"})
	env.tokens.Identity = &tokens.Identity{Subject: "u42", Status: "active"}

	out, err := env.manager.Complete(ctx, url.Values{"code": {"code-1"}, "state": {attempt.State}})
	require.NoError(t, err)
	require.Equal(t, []string{"code-1:" + attempt.Verifier}, env.tokens.Exchanges())

	require.Equal(t, &sessions.Record{
		Service:      services.Frame,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		UserID:       "u42",
		Plan:         "Team",
		Status:       "active",
		ExpiresAt:    env.now.Add(30 * time.Minute),
	}, out.Record)
}

func TestCompleteCodeExchangeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("network", func(t *testing.T) {
		env := newEnv(t)
		attempt, err := env.manager.Begin(ctx, services.Find, redirectURI, nil)
		require.NoError(t, err)
		env.tokens.Err = apperrors.Wrapf(apperrors.ErrNetwork, "dial tcp")

		out, err := env.manager.Complete(ctx, url.Values{"code": {"c"}, "state": {attempt.State}})
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.Equal(t, apperrors.CategoryNetwork, out.Category())
		require.True(t, env.manager.Sessions().IsExpired(ctx, services.Find))
	})

	t.Run("id token rejected", func(t *testing.T) {
		env := newEnv(t)
		attempt, err := env.manager.Begin(ctx, services.Find, redirectURI, nil)
		require.NoError(t, err)
		env.tokens.Codes["c"] = (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{"id_token": "forged"})

		_, err = env.manager.Complete(ctx, url.Values{"code": {"c"}, "state": {attempt.State}})
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		require.True(t, env.manager.Sessions().IsExpired(ctx, services.Find))
	})
}

func TestRequireSessionExpired(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	require.NoError(t, env.manager.Sessions().Save(ctx, services.Keep, "tok", env.now.Add(-time.Hour)))

	_, err := env.manager.RequireSession(ctx, services.Keep)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
	require.Equal(t, flow.PhaseIdle, env.manager.Phase(ctx, services.Keep))
	require.Equal(t, 0, env.store.Len(), "expired session cleared")
}

func TestRefresh(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.manager.Sessions()

	require.NoError(t, sess.SaveRecord(ctx, &sessions.Record{
		Service:      services.Build,
		AccessToken:  "old",
		RefreshToken: "refresh-1",
		Plan:         "Pro",
		ExpiresAt:    env.now.Add(-time.Minute),
	}))
	env.tokens.RefreshTokens["refresh-1"] = &oauth2.Token{AccessToken: "new", Expiry: env.now.Add(time.Hour)}

	record, err := env.manager.Refresh(ctx, services.Build)
	require.NoError(t, err)
	require.Equal(t, "new", record.AccessToken)
	require.Equal(t, "refresh-1", record.RefreshToken)
	require.Equal(t, "Pro", record.Plan)
	require.False(t, sess.IsExpired(ctx, services.Build))

	t.Run("rejected refresh token ends the session", func(t *testing.T) {
		delete(env.tokens.RefreshTokens, "refresh-1")
		_, err := env.manager.Refresh(ctx, services.Build)
		require.ErrorIs(t, err, apperrors.ErrSessionExpired)
		require.True(t, sess.IsExpired(ctx, services.Build))
	})

	t.Run("network failure keeps the session", func(t *testing.T) {
		require.NoError(t, sess.SaveRecord(ctx, &sessions.Record{
			Service: services.Build, AccessToken: "a", RefreshToken: "r", ExpiresAt: env.now.Add(time.Hour),
		}))
		env.tokens.Err = apperrors.Wrapf(apperrors.ErrNetwork, "timeout")
		defer func() { env.tokens.Err = nil }()

		_, err := env.manager.Refresh(ctx, services.Build)
		require.ErrorIs(t, err, apperrors.ErrNetwork)
		require.False(t, sess.IsExpired(ctx, services.Build))
	})

	t.Run("no refresh token", func(t *testing.T) {
		require.NoError(t, sess.Save(ctx, services.Find, "a", env.now.Add(time.Hour)))
		_, err := env.manager.Refresh(ctx, services.Find)
		require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
	})

	t.Run("no session", func(t *testing.T) {
		_, err := env.manager.Refresh(ctx, services.Keep)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

func TestLogout(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	sess := env.manager.Sessions()

	require.NoError(t, sess.SaveRecord(ctx, &sessions.Record{
		Service: services.Find, AccessToken: "a1", RefreshToken: "r1", ExpiresAt: env.now.Add(time.Hour),
	}))
	require.NoError(t, env.manager.Logout(ctx, services.Find))

	require.Equal(t, []tokensfake.Revocation{
		{Service: services.Find, Token: "r1", Hint: oauthmodel.RefreshTokenHint},
		{Service: services.Find, Token: "a1", Hint: oauthmodel.AccessTokenHint},
	}, env.tokens.Revoked())
	require.True(t, sess.IsExpired(ctx, services.Find))

	require.NoError(t, env.manager.Logout(ctx, services.Find), "logging out twice is fine")
}

func TestLogoutClearsWhenRevocationFails(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	require.NoError(t, env.manager.Sessions().Save(ctx, services.Find, "a1", env.now.Add(time.Hour)))
	env.tokens.Err = errors.New("unreachable")

	require.NoError(t, env.manager.Logout(ctx, services.Find))
	require.True(t, env.manager.Sessions().IsExpired(ctx, services.Find))
}

func TestLogoutAll(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	for _, id := range services.All() {
		require.NoError(t, env.manager.Sessions().Save(ctx, id, "tok_"+string(id), env.now.Add(time.Hour)))
	}
	env.begin(t, services.Find)

	require.NoError(t, env.manager.LogoutAll(ctx))
	require.Len(t, env.tokens.Revoked(), 4)
	require.Equal(t, 0, env.store.Len())
	for _, id := range services.All() {
		require.Equal(t, flow.PhaseIdle, env.manager.Phase(ctx, id))
	}
}

func TestExchangeForWorkers(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.manager.ExchangeForWorkers(ctx, services.Find)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	require.NoError(t, env.manager.Sessions().Save(ctx, services.Find, "tok123", env.now.Add(time.Hour)))
	env.tokens.WorkersTokens["tok123"] = "workers-tok"

	resp, err := env.manager.ExchangeForWorkers(ctx, services.Find)
	require.NoError(t, err)
	require.Equal(t, "workers-tok", resp.Token())
}

func TestWithStoreIsolates(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	alice := env.manager.WithStore(kv.WithPrefix(env.store, "alice:"))
	bob := env.manager.WithStore(kv.WithPrefix(env.store, "bob:"))

	attempt, err := alice.Begin(ctx, services.Find, redirectURI, nil)
	require.NoError(t, err)

	_, err = bob.Complete(ctx, successQuery(attempt.State))
	require.ErrorIs(t, err, apperrors.ErrNoPendingAuthorization)

	_, err = alice.Complete(ctx, successQuery(attempt.State))
	require.NoError(t, err)
	require.Equal(t, flow.PhaseAuthenticated, alice.Phase(ctx, services.Find))
	require.Equal(t, flow.PhaseIdle, bob.Phase(ctx, services.Find))
}

func TestPhase(t *testing.T) {
	require.True(t, flow.PhaseAuthenticated.Terminal())
	require.True(t, flow.PhaseFailed.Terminal())
	require.False(t, flow.PhaseAuthorizing.Terminal())
	require.Equal(t, "CALLBACK_RECEIVED", flow.PhaseCallbackReceived.String())
}
