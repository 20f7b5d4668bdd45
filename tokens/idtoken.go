package tokens

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/services"
)

// Identity holds the ID token claims this client reads.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Plan    string `json:"plan"`
	Status  string `json:"status"`
}

// VerifyIDToken checks the signature of rawIDToken against the service's JWKS, along
// with its issuer, audience and expiry.
func (c *Client) VerifyIDToken(ctx context.Context, svc *services.Service, rawIDToken string) (*Identity, error) {
	idToken, err := c.verifierFor(svc).Verify(oidc.ClientContext(ctx, c.httpClient), rawIDToken)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Client VerifyIDToken] %s: %v", svc.ID, err)
	}

	var id Identity
	if err := idToken.Claims(&id); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidToken, "[Client VerifyIDToken] claims: %v", err)
	}
	return &id, nil
}

// verifierFor caches one verifier, and so one key set, per service.
func (c *Client) verifierFor(svc *services.Service) *oidc.IDTokenVerifier {
	c.lock.RLock()
	v, exists := c.verifiers[svc.ID]
	c.lock.RUnlock()
	if exists {
		return v
	}

	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), c.httpClient), svc.JWKSURL())
	v = oidc.NewVerifier(svc.Issuer(), keySet, &oidc.Config{
		ClientID: svc.ClientID,
		Now:      c.now,
	})

	c.lock.Lock()
	c.verifiers[svc.ID] = v
	c.lock.Unlock()
	return v
}

// ExpiryFromJWT reads the exp claim of a JWT without verifying it. The token is
// only inspected to schedule local expiry; it is never trusted for identity.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	tok, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
