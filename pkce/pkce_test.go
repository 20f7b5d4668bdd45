package pkce_test

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/pkce"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/stretchr/testify/require"
)

var unreserved = regexp.MustCompile(`^[A-Za-z0-9\-._~]+$`)

func TestGenerateVerifier(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		v := pkce.GenerateVerifier()
		require.GreaterOrEqual(t, len(v), pkce.MinVerifierLength)
		require.LessOrEqual(t, len(v), pkce.MaxVerifierLength)
		require.Regexp(t, unreserved, v)
		require.True(t, pkce.ValidVerifier(v))

		_, dup := seen[v]
		require.False(t, dup, "verifier repeated")
		seen[v] = struct{}{}
	}
}

func TestDeriveChallenge(t *testing.T) {
	// RFC 7636 appendix B
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := pkce.DeriveChallenge(verifier)

	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)
	require.Equal(t, challenge, pkce.DeriveChallenge(verifier))
	require.Len(t, challenge, 43)
	require.NotContains(t, challenge, "=")
	require.NotContains(t, challenge, "+")
	require.NotContains(t, challenge, "/")
}

func TestNewPair(t *testing.T) {
	p := pkce.NewPair()
	require.True(t, pkce.VerifyChallenge(p.Verifier, p.Challenge))
	require.False(t, pkce.VerifyChallenge(pkce.GenerateVerifier(), p.Challenge))
	require.False(t, pkce.VerifyChallenge("", p.Challenge))
}

func TestValidVerifier(t *testing.T) {
	require.False(t, pkce.ValidVerifier(strings.Repeat("a", 42)))
	require.True(t, pkce.ValidVerifier(strings.Repeat("a", 43)))
	require.True(t, pkce.ValidVerifier(strings.Repeat("a", 128)))
	require.False(t, pkce.ValidVerifier(strings.Repeat("a", 129)))
	require.False(t, pkce.ValidVerifier(strings.Repeat("a", 42)+"+"))
}

func TestGenerateState(t *testing.T) {
	const redirect = "https://www.ideaonaction.ai/auth/minu/callback"

	first, err := pkce.GenerateState(services.Find, redirect)
	require.NoError(t, err)
	second, err := pkce.GenerateState(services.Find, redirect)
	require.NoError(t, err)

	a, err := pkce.DecodeState(first)
	require.NoError(t, err)
	b, err := pkce.DecodeState(second)
	require.NoError(t, err)

	require.Equal(t, pkce.StateVersion, a.Version)
	require.Equal(t, services.Find, a.Service)
	require.Equal(t, redirect, a.RedirectURI)
	require.Equal(t, a.Service, b.Service)
	require.Equal(t, a.RedirectURI, b.RedirectURI)
	require.NotEqual(t, a.CSRF, b.CSRF)

	raw, err := base64.StdEncoding.DecodeString(first)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Contains(t, payload, "csrf")
	require.Equal(t, "find", payload["service"])
	require.Equal(t, redirect, payload["redirect_uri"])
}

func encode(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func TestDecodeState(t *testing.T) {
	t.Run("unversioned payload decodes as v1", func(t *testing.T) {
		s, err := pkce.DecodeState(encode(t, map[string]string{
			"csrf": "abc", "service": "keep", "redirect_uri": "https://app/cb",
		}))
		require.NoError(t, err)
		require.Equal(t, 1, s.Version)
		require.Equal(t, services.Keep, s.Service)
	})

	t.Run("url-safe alphabet", func(t *testing.T) {
		data, err := json.Marshal(map[string]string{"csrf": "abc", "service": "frame"})
		require.NoError(t, err)
		s, err := pkce.DecodeState(base64.RawURLEncoding.EncodeToString(data))
		require.NoError(t, err)
		require.Equal(t, services.Frame, s.Service)
	})

	t.Run("future version", func(t *testing.T) {
		_, err := pkce.DecodeState(encode(t, map[string]any{"v": 2, "csrf": "abc", "service": "find"}))
		require.ErrorIs(t, err, apperrors.ErrUnsupportedStateVersion)
	})

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("nope"))},
		{"missing csrf", encode(t, map[string]string{"service": "find"})},
		{"unknown service", encode(t, map[string]string{"csrf": "abc", "service": "other"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pkce.DecodeState(tt.input)
			require.ErrorIs(t, err, apperrors.ErrInvalidState)
		})
	}
}
