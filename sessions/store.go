// Package sessions persists the Minu access tokens in a kv.Store under fixed,
// human-readable keys. Expiry is checked lazily on read; nothing sweeps in the background.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/rs/zerolog/log"
)

type Store struct {
	kv  kv.Store
	now func() time.Time
}

type StoreOption func(s *Store)

// WithNowTime overrides the clock used for expiry checks
func WithNowTime(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(store kv.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:  store,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stores token for service, replacing any existing record.
func (s *Store) Save(ctx context.Context, service services.ID, token string, expiresAt time.Time) error {
	return s.SaveRecord(ctx, &Record{
		Service:     service,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

// SaveRecord stores r as the record of r.Service and makes it the current session.
// Optional fields left empty are removed so nothing of the previous record survives.
func (s *Store) SaveRecord(ctx context.Context, r *Record) error {
	if !r.Service.Valid() {
		return apperrors.Wrapf(apperrors.ErrUnknownService, "[Store SaveRecord] %q", r.Service)
	}
	if r.AccessToken == "" {
		return fmt.Errorf("[Store SaveRecord] %s: access token is required", r.Service)
	}

	expiresAt := r.ExpiresAt.UTC().Format(time.RFC3339Nano)
	values := map[string]string{
		fieldAccessToken:  r.AccessToken,
		fieldExpiresAt:    expiresAt,
		fieldRefreshToken: r.RefreshToken,
		fieldUserID:       r.UserID,
		fieldPlan:         r.Plan,
		fieldStatus:       r.Status,
	}
	for _, field := range serviceFields {
		key := ServiceKey(field, r.Service)
		var err error
		if v := values[field]; v != "" {
			err = s.kv.Set(ctx, key, v)
		} else {
			err = s.kv.Delete(ctx, key)
		}
		if err != nil {
			return fmt.Errorf("[Store SaveRecord] %s: %w", key, err)
		}
	}

	for key, v := range map[string]string{
		KeyAccessToken: r.AccessToken,
		KeyService:     string(r.Service),
		KeyExpiresAt:   expiresAt,
	} {
		if err := s.kv.Set(ctx, key, v); err != nil {
			return fmt.Errorf("[Store SaveRecord] %s: %w", key, err)
		}
	}
	return nil
}

// Peek returns the stored record for service without checking expiry.
func (s *Store) Peek(ctx context.Context, service services.ID) (*Record, error) {
	token, err := s.get(ctx, ServiceKey(fieldAccessToken, service))
	if err != nil {
		return nil, err
	}
	if token == "" {
		return s.peekCurrent(ctx, service)
	}

	r := &Record{Service: service, AccessToken: token}
	rawExpiry, err := s.get(ctx, ServiceKey(fieldExpiresAt, service))
	if err != nil {
		return nil, err
	}
	r.ExpiresAt = parseExpiry(rawExpiry)

	for field, dst := range map[string]*string{
		fieldRefreshToken: &r.RefreshToken,
		fieldUserID:       &r.UserID,
		fieldPlan:         &r.Plan,
		fieldStatus:       &r.Status,
	} {
		if *dst, err = s.get(ctx, ServiceKey(field, service)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// peekCurrent falls back to the unsuffixed keys, which older clients wrote alone.
func (s *Store) peekCurrent(ctx context.Context, service services.ID) (*Record, error) {
	current, err := s.get(ctx, KeyService)
	if err != nil {
		return nil, err
	}
	if current != string(service) {
		return nil, apperrors.Wrapf(apperrors.ErrSessionNotFound, "%s", service)
	}

	token, err := s.get(ctx, KeyAccessToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperrors.Wrapf(apperrors.ErrSessionNotFound, "%s", service)
	}
	rawExpiry, err := s.get(ctx, KeyExpiresAt)
	if err != nil {
		return nil, err
	}
	return &Record{Service: service, AccessToken: token, ExpiresAt: parseExpiry(rawExpiry)}, nil
}

// Load returns the live record for service. An expired record is deleted and
// ErrSessionExpired returned.
func (s *Store) Load(ctx context.Context, service services.ID) (*Record, error) {
	r, err := s.Peek(ctx, service)
	if err != nil {
		return nil, err
	}
	if r.Expired(s.now()) {
		if err := s.Clear(ctx, service); err != nil {
			log.Err(err).Str("service", string(service)).Msg("failed to clear expired session")
		}
		return nil, apperrors.Wrapf(apperrors.ErrSessionExpired, "%s expired at %s", service, r.ExpiresAt.Format(time.RFC3339))
	}
	return r, nil
}

// IsExpired is true when no record exists for service or its expiry has passed.
// Storage errors count as expired.
func (s *Store) IsExpired(ctx context.Context, service services.ID) bool {
	r, err := s.Peek(ctx, service)
	if err != nil {
		if !errors.Is(err, apperrors.ErrSessionNotFound) {
			log.Err(err).Str("service", string(service)).Msg("failed to read session")
		}
		return true
	}
	return r.Expired(s.now())
}

// Current returns the service of the most recently saved session.
func (s *Store) Current(ctx context.Context) (services.ID, error) {
	v, err := s.get(ctx, KeyService)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", apperrors.ErrSessionNotFound
	}
	return services.Parse(v)
}

// List returns the stored records, expired ones included, in services.All order.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	var records []*Record
	for _, id := range services.All() {
		r, err := s.Peek(ctx, id)
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// Clear removes the record of service, and the current session keys when they
// belong to it.
func (s *Store) Clear(ctx context.Context, service services.ID) error {
	var errs []error
	for _, field := range serviceFields {
		if err := s.kv.Delete(ctx, ServiceKey(field, service)); err != nil {
			errs = append(errs, err)
		}
	}

	current, err := s.get(ctx, KeyService)
	if err != nil {
		errs = append(errs, err)
	} else if current == string(service) {
		errs = append(errs, s.clearCurrent(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("[Store Clear] %s: %w", service, err)
	}
	return nil
}

// ClearAll removes every record.
func (s *Store) ClearAll(ctx context.Context) error {
	var errs []error
	for _, id := range services.All() {
		for _, field := range serviceFields {
			if err := s.kv.Delete(ctx, ServiceKey(field, id)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	errs = append(errs, s.clearCurrent(ctx))

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("[Store ClearAll] %w", err)
	}
	return nil
}

func (s *Store) clearCurrent(ctx context.Context) error {
	var errs []error
	for _, key := range []string{KeyAccessToken, KeyService, KeyExpiresAt} {
		if err := s.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// get returns "" for a missing key.
func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("[Store get] %s: %w", key, err)
	}
	return v, nil
}

// parseExpiry treats an unreadable timestamp as already expired.
func parseExpiry(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
