// Package kv defines the key-value store the session and flow state live in.
// Values are plain strings; nothing is encrypted at rest.
package kv

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = apperrors.ErrNotFound

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Expirer is implemented by stores that drop a key on their own once its ttl
// has passed.
type Expirer interface {
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// SetTTL stores value under key for ttl. Stores without expiry keep the value
// until it is deleted.
func SetTTL(ctx context.Context, s Store, key, value string, ttl time.Duration) error {
	if e, ok := s.(Expirer); ok && ttl > 0 {
		return e.SetTTL(ctx, key, value, ttl)
	}
	return s.Set(ctx, key, value)
}

// Closer is implemented by stores holding connections or files.
type Closer interface {
	Close() error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WithPrefix namespaces every key of s. It is used to give each browser its own
// view of a shared store.
func WithPrefix(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return &prefixed{store: s, prefix: prefix}
}

type prefixed struct {
	store  Store
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return SetTTL(ctx, p.store, p.prefix+key, value, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, p.prefix+key)
}
