package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/minu-sso/flow"
	"github.com/jrsteele09/minu-sso/internal/config"
	"github.com/jrsteele09/minu-sso/kv/filekv"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/sessions"
	"github.com/jrsteele09/minu-sso/tokens/tokensfake"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type cli struct {
	t      *testing.T
	path   string
	tokens *tokensfake.FakeClient
}

func newCLI(t *testing.T) *cli {
	c := &cli{
		t:      t,
		path:   filepath.Join(t.TempDir(), "session.json"),
		tokens: tokensfake.NewFakeClient(),
	}
	prev := newTokenClient
	newTokenClient = func(config.Config) flow.TokenClient { return c.tokens }
	t.Cleanup(func() { newTokenClient = prev })
	return c
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--session-file", c.path, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) seed(service services.ID) {
	c.t.Helper()
	store := sessions.NewStore(filekv.New(c.path))
	require.NoError(c.t, store.SaveRecord(context.Background(), &sessions.Record{
		Service:      service,
		AccessToken:  "at-" + string(service),
		RefreshToken: "rt-" + string(service),
		UserID:       "u1",
		Plan:         "Pro",
		Status:       "active",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))
}

func TestStatus(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("status")
	require.NoError(t, err)
	require.Contains(t, out, "Not signed in")

	c.seed(services.Find)
	out, err = c.run("status")
	require.NoError(t, err)
	require.Contains(t, out, "SERVICE")
	require.Contains(t, out, "find *")
	require.Contains(t, out, "Pro")
	require.NotContains(t, out, "at-find")
}

func TestLogout(t *testing.T) {
	c := newCLI(t)
	c.seed(services.Find)
	c.seed(services.Frame)

	_, err := c.run("logout")
	require.Error(t, err)

	out, err := c.run("logout", "--service", "find")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out of Minu find.")
	require.Len(t, c.tokens.Revoked(), 2)

	out, err = c.run("status")
	require.NoError(t, err)
	require.NotContains(t, out, "find")
	require.Contains(t, out, "frame")

	out, err = c.run("logout", "--all")
	require.NoError(t, err)
	require.Contains(t, out, "all Minu services")

	out, err = c.run("status")
	require.NoError(t, err)
	require.Contains(t, out, "Not signed in")

	_, err = c.run("logout", "--service", "nope")
	require.ErrorContains(t, err, "unknown service")
}

func TestRefresh(t *testing.T) {
	c := newCLI(t)
	c.seed(services.Find)
	c.tokens.RefreshTokens["rt-find"] = &oauth2.Token{AccessToken: "at-2", Expiry: time.Now().Add(2 * time.Hour)}

	out, err := c.run("refresh", "--service", "find")
	require.NoError(t, err)
	require.Contains(t, out, "Refreshed Minu find")

	delete(c.tokens.RefreshTokens, "rt-find")
	_, err = c.run("refresh", "--service", "find")
	require.ErrorContains(t, err, "minu login --service find")

	_, err = c.run("refresh")
	require.Error(t, err)
}

func TestLoginUnknownService(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("login", "--service", "nope", "--no-browser")
	require.ErrorContains(t, err, "unknown service")
}
