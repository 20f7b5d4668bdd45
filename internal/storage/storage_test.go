package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/minu-sso/internal/config"
	"github.com/jrsteele09/minu-sso/internal/storage"
	"github.com/jrsteele09/minu-sso/kv/filekv"
	"github.com/jrsteele09/minu-sso/kv/memory"
	"github.com/jrsteele09/minu-sso/kv/sqlitekv"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("memory", func(t *testing.T) {
		store, err := storage.Open(ctx, config.Storage{Backend: config.BackendMemory})
		require.NoError(t, err)
		require.IsType(t, &memory.Store{}, store)
	})

	t.Run("default is memory", func(t *testing.T) {
		store, err := storage.Open(ctx, config.Storage{})
		require.NoError(t, err)
		require.IsType(t, &memory.Store{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := storage.Open(ctx, config.Storage{Backend: "SQLite", SQLitePath: filepath.Join(dir, "nested", "minu.db")})
		require.NoError(t, err)
		defer storage.Close(store)
		require.IsType(t, &sqlitekv.Store{}, store)

		require.NoError(t, store.Set(ctx, "k", "v"))
		v, err := store.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", v)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(dir, "session.json")
		store, err := storage.Open(ctx, config.Storage{Backend: config.BackendFile, SessionFile: path})
		require.NoError(t, err)
		fs, ok := store.(*filekv.Store)
		require.True(t, ok)
		require.Equal(t, path, fs.Path())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := storage.Open(ctx, config.Storage{Backend: "etcd"})
		require.Error(t, err)
	})
}
