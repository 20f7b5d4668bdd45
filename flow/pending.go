package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/pkce"
	"github.com/jrsteele09/minu-sso/services"
)

// Keys holding the attempt in progress. There is at most one per store.
const (
	KeyPendingState       = "minu_oauth_state"
	KeyPendingVerifier    = "minu_code_verifier"
	KeyPendingRedirectURI = "minu_oauth_redirect_uri"
	KeyPendingStartedAt   = "minu_oauth_started_at"
)

var pendingKeys = []string{KeyPendingState, KeyPendingVerifier, KeyPendingRedirectURI, KeyPendingStartedAt}

type pending struct {
	State       string
	Verifier    string
	RedirectURI string
	StartedAt   time.Time
}

// savePending stores p for ttl so abandoned attempts do not accumulate.
func savePending(ctx context.Context, store kv.Store, p *pending, ttl time.Duration) error {
	for key, v := range map[string]string{
		KeyPendingState:       p.State,
		KeyPendingVerifier:    p.Verifier,
		KeyPendingRedirectURI: p.RedirectURI,
		KeyPendingStartedAt:   p.StartedAt.UTC().Format(time.RFC3339Nano),
	} {
		if err := kv.SetTTL(ctx, store, key, v, ttl); err != nil {
			return fmt.Errorf("[savePending] %s: %w", key, err)
		}
	}
	return nil
}

// loadPending returns nil without error when no attempt is stored.
func loadPending(ctx context.Context, store kv.Store) (*pending, error) {
	values := make(map[string]string, len(pendingKeys))
	for _, key := range pendingKeys {
		v, err := store.Get(ctx, key)
		if errors.Is(err, kv.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("[loadPending] %s: %w", key, err)
		}
		values[key] = v
	}

	if values[KeyPendingState] == "" {
		return nil, nil
	}

	startedAt, _ := time.Parse(time.RFC3339, values[KeyPendingStartedAt])
	return &pending{
		State:       values[KeyPendingState],
		Verifier:    values[KeyPendingVerifier],
		RedirectURI: values[KeyPendingRedirectURI],
		StartedAt:   startedAt,
	}, nil
}

func clearPending(ctx context.Context, store kv.Store) error {
	var errs []error
	for _, key := range pendingKeys {
		if err := store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pendingService is the service the attempt was started for, or "" when the
// stored state cannot be read.
func pendingService(p *pending) services.ID {
	s, err := pkce.DecodeState(p.State)
	if err != nil {
		return ""
	}
	return s.Service
}
