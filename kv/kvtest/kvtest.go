// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/minu-sso/kv"
	"github.com/stretchr/testify/require"
)

// Run exercises store against the kv.Store contract. Keys are prefixed with a
// per-test value so shared backends such as redis can be reused.
func Run(t *testing.T, store kv.Store) {
	t.Helper()
	ctx := context.Background()
	prefix := "kvtest_" + t.Name() + "_"

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"missing")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		key := prefix + "minu_access_token"
		require.NoError(t, store.Set(ctx, key, "tok123"))

		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "tok123", v)

		require.NoError(t, store.Set(ctx, key, "tok456"))
		v, err = store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "tok456", v)
	})

	t.Run("empty value", func(t *testing.T) {
		key := prefix + "empty"
		require.NoError(t, store.Set(ctx, key, ""))
		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "", v)
	})

	t.Run("delete", func(t *testing.T) {
		key := prefix + "minu_service"
		require.NoError(t, store.Set(ctx, key, "find"))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		require.ErrorIs(t, err, kv.ErrNotFound)

		require.NoError(t, store.Delete(ctx, key))
	})

	t.Run("set with ttl", func(t *testing.T) {
		key := prefix + "minu_oauth_state"
		require.NoError(t, kv.SetTTL(ctx, store, key, "state", time.Hour))
		v, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, "state", v)

		require.NoError(t, kv.SetTTL(ctx, kv.WithPrefix(store, prefix+"p:"), "minu_oauth_state", "other", time.Hour))
		v, err = store.Get(ctx, prefix+"p:minu_oauth_state")
		require.NoError(t, err)
		require.Equal(t, "other", v)

		require.NoError(t, store.Delete(ctx, key))
		_, err = store.Get(ctx, key)
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("prefix isolates", func(t *testing.T) {
		a := kv.WithPrefix(store, prefix+"a:")
		b := kv.WithPrefix(store, prefix+"b:")

		require.NoError(t, a.Set(ctx, "minu_service", "find"))
		_, err := b.Get(ctx, "minu_service")
		require.ErrorIs(t, err, kv.ErrNotFound)

		v, err := store.Get(ctx, prefix+"a:minu_service")
		require.NoError(t, err)
		require.Equal(t, "find", v)
	})
}
