// Package storage opens the kv.Store selected by configuration.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/minu-sso/internal/config"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/kv/filekv"
	"github.com/jrsteele09/minu-sso/kv/memory"
	"github.com/jrsteele09/minu-sso/kv/rediskv"
	"github.com/jrsteele09/minu-sso/kv/sqlitekv"
	"github.com/rs/zerolog/log"
)

// Open returns the configured backend. Callers should Close the store when it
// implements kv.Closer.
func Open(ctx context.Context, cfg config.StorageConfig) (kv.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.GetStorageBackend()))

	switch backend {
	case "", config.BackendMemory:
		log.Warn().Msg("using in-memory storage, sessions are lost on restart")
		return memory.New(), nil

	case config.BackendRedis:
		redisCfg := rediskv.DefaultConfig()
		redisCfg.Addr = cfg.GetRedisAddr()
		redisCfg.Password = cfg.GetRedisPassword()
		redisCfg.DB = cfg.GetRedisDB()
		redisCfg.Prefix = cfg.GetRedisPrefix()
		store, err := rediskv.Open(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("[storage Open] %w", err)
		}
		return store, nil

	case config.BackendSQLite:
		path := cfg.GetSQLitePath()
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("[storage Open] create %s: %w", dir, err)
			}
		}
		store, err := sqlitekv.Open(path)
		if err != nil {
			return nil, fmt.Errorf("[storage Open] %w", err)
		}
		log.Info().Str("path", path).Msg("using sqlite storage")
		return store, nil

	case config.BackendFile:
		path := cfg.GetSessionFile()
		if path == "" {
			path = filekv.DefaultPath()
		}
		log.Info().Str("path", path).Msg("using file storage")
		return filekv.New(path), nil

	default:
		return nil, fmt.Errorf("[storage Open] unknown storage backend %q", backend)
	}
}

// Close closes store if it holds resources.
func Close(store kv.Store) {
	c, ok := store.(kv.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Err(err).Msg("closing storage")
	}
}
