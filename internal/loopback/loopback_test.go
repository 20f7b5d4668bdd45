package loopback_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/minu-sso/internal/loopback"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestReceiverCapturesFirstCallback(t *testing.T) {
	r, err := loopback.Listen(0, "")
	require.NoError(t, err)
	defer r.Close()

	redirect := r.RedirectURI()
	require.True(t, strings.HasPrefix(redirect, "http://127.0.0.1:"))
	require.True(t, strings.HasSuffix(redirect, loopback.DefaultPath))

	status, body := get(t, redirect+"?code=abc&state=xyz")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Signed in")

	status, body = get(t, redirect+"?code=second")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Already handled")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q, err := r.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "abc", q.Get("code"))
	require.Equal(t, "xyz", q.Get("state"))
}

func TestReceiverErrorCallback(t *testing.T) {
	r, err := loopback.Listen(0, "/cb")
	require.NoError(t, err)
	defer r.Close()

	_, body := get(t, r.RedirectURI()+"?error=access_denied")
	require.Contains(t, body, "did not complete")

	q, err := r.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access_denied", q.Get("error"))
}

func TestReceiverIgnoresRequestsWithoutCallbackParams(t *testing.T) {
	r, err := loopback.Listen(0, "")
	require.NoError(t, err)
	defer r.Close()

	status, body := get(t, r.RedirectURI())
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "Waiting for sign in")

	status, _ = get(t, r.RedirectURI()+"?utm_source=prefetch")
	require.Equal(t, http.StatusBadRequest, status)

	status, body = get(t, r.RedirectURI()+"?access_token=tok&state=xyz")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Signed in")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q, err := r.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "tok", q.Get("access_token"))
}

func TestReceiverOtherPaths(t *testing.T) {
	r, err := loopback.Listen(0, "")
	require.NoError(t, err)
	defer r.Close()

	base := strings.TrimSuffix(r.RedirectURI(), loopback.DefaultPath)
	status, _ := get(t, base+"/favicon.ico")
	require.Equal(t, http.StatusNotFound, status)
}

func TestReceiverWaitTimeout(t *testing.T) {
	r, err := loopback.Listen(0, "")
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
