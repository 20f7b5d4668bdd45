package rediskv_test

import (
	"context"
	"os"
	"testing"

	"github.com/jrsteele09/minu-sso/kv/kvtest"
	"github.com/jrsteele09/minu-sso/kv/rediskv"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	cfg := rediskv.DefaultConfig()
	cfg.Addr = addr
	cfg.Prefix = "minu_test:"

	store, err := rediskv.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Ping(context.Background()))
	kvtest.Run(t, store)
}
