package authorize_test

import (
	"net/url"
	"testing"

	"github.com/jrsteele09/minu-sso/authorize"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/pkce"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/stretchr/testify/require"
)

const redirectURI = "https://www.ideaonaction.ai/auth/minu/callback"

func newBuilder(t *testing.T, opts ...authorize.BuilderOption) *authorize.Builder {
	t.Helper()
	reg, err := services.NewRegistry(&services.Service{
		ID:           services.Find,
		Origin:       "https://find.minu.best",
		ClientID:     "idea-on-action",
		RedirectURIs: []string{redirectURI},
		Scopes:       []string{"openid", "profile", "email", "offline_access"},
	})
	require.NoError(t, err)
	return authorize.NewBuilder(reg, opts...)
}

func TestBuild(t *testing.T) {
	b := newBuilder(t)

	attempt, err := b.Build(services.Find, redirectURI, []string{"openid", "profile", "email"})
	require.NoError(t, err)

	u, err := url.Parse(attempt.URL)
	require.NoError(t, err)
	require.Equal(t, "https", u.Scheme)
	require.Equal(t, "find.minu.best", u.Host)
	require.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	require.Equal(t, "idea-on-action", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, redirectURI, q.Get("redirect_uri"))
	require.Equal(t, "openid profile email", q.Get("scope"))
	require.Equal(t, "S256", q.Get("code_challenge_method"))
	require.Equal(t, attempt.State, q.Get("state"))
	require.Equal(t, pkce.DeriveChallenge(attempt.Verifier), q.Get("code_challenge"))

	state, err := pkce.DecodeState(attempt.State)
	require.NoError(t, err)
	require.Equal(t, services.Find, state.Service)
	require.Equal(t, redirectURI, state.RedirectURI)
}

func TestBuildFreshPerAttempt(t *testing.T) {
	b := newBuilder(t)

	first, err := b.Build(services.Find, redirectURI, nil)
	require.NoError(t, err)
	second, err := b.Build(services.Find, redirectURI, nil)
	require.NoError(t, err)

	require.NotEqual(t, first.Verifier, second.Verifier)
	require.NotEqual(t, first.State, second.State)
}

func TestBuildDefaultScopes(t *testing.T) {
	b := newBuilder(t, authorize.WithDefaultScopes("openid", "email"))

	attempt, err := b.Build(services.Find, redirectURI, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"openid", "email"}, attempt.Request.Scope)

	u, err := url.Parse(attempt.URL)
	require.NoError(t, err)
	require.Equal(t, "openid email", u.Query().Get("scope"))
}

func TestBuildErrors(t *testing.T) {
	b := newBuilder(t)

	_, err := b.Build(services.Keep, redirectURI, nil)
	require.ErrorIs(t, err, apperrors.ErrUnknownService)

	_, err = b.Build(services.Find, redirectURI, []string{"admin"})
	require.ErrorIs(t, err, apperrors.ErrInvalidScope)

	_, err = b.Build(services.Find, "https://evil.example.com/cb", nil)
	require.ErrorIs(t, err, apperrors.ErrInvalidRedirectURI)
}
