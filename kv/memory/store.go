package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/minu-sso/kv"
)

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Expirer = (*Store)(nil)
)

// Expired keys are swept at most this often
const sweepInterval = time.Minute

// Store is a thread-safe in-memory kv.Store
type Store struct {
	mu        sync.RWMutex
	values    map[string]string
	expires   map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

type Option func(s *Store)

func WithNowTime(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty in-memory store
func New(opts ...Option) *Store {
	s := &Store{
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves a value by key
func (s *Store) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.values[key]
	if !exists || s.expired(key, s.now()) {
		return "", kv.ErrNotFound
	}
	return v, nil
}

// Set stores or replaces a value that never expires
func (s *Store) Set(_ context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
	s.values[key] = value
	delete(s.expires, key)
	return nil
}

// SetTTL stores or replaces a value that is dropped once ttl has passed
func (s *Store) SetTTL(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	s.values[key] = value
	s.expires[key] = now.Add(ttl)
	return nil
}

// Delete removes a value
func (s *Store) Delete(_ context.Context, key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.expires, key)
	return nil
}

// Len returns the number of stored keys, including expired keys not yet swept
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Keys returns a snapshot of the live keys, in no particular order
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if !s.expired(k, now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// expired must be called with the lock held
func (s *Store) expired(key string, now time.Time) bool {
	at, ok := s.expires[key]
	return ok && !now.Before(at)
}

// sweep must be called with the write lock held
func (s *Store) sweep(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	s.nextSweep = now.Add(sweepInterval)
	for k, at := range s.expires {
		if !now.Before(at) {
			delete(s.values, k)
			delete(s.expires, k)
		}
	}
}
