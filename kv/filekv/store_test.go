package filekv_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/kv/filekv"
	"github.com/jrsteele09/minu-sso/kv/kvtest"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, filekv.New(filepath.Join(t.TempDir(), "session.json")))
}

func TestStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	ctx := context.Background()

	s := filekv.New(path)
	_, err := s.Get(ctx, "minu_service")
	require.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set(ctx, "minu_service", "keep"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	v, err := filekv.New(path).Get(ctx, "minu_service")
	require.NoError(t, err)
	require.Equal(t, "keep", v)
}

func TestStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := filekv.New(path).Get(context.Background(), "minu_service")
	require.Error(t, err)
	require.NotErrorIs(t, err, kv.ErrNotFound)
}

func TestDefaultPath(t *testing.T) {
	require.Equal(t, "session.json", filepath.Base(filekv.DefaultPath()))
	require.Equal(t, ".minu", filepath.Base(filepath.Dir(filekv.DefaultPath())))
}
