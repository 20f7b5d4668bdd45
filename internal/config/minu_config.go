package config

import (
	"fmt"
	"time"
)

type MinuConfig interface {
	GetClientID() string
	GetServiceOrigins() map[string]string
	GetScopes() []string
	GetRedirectURIs() []string
	GetWorkersAPIURL() string
	GetSessionTTL() time.Duration
	GetPendingTTL() time.Duration
	GetHTTPTimeout() time.Duration
}

type Minu struct {
	ClientID      string        `env:"MINU_CLIENT_ID"       envDefault:"idea-on-action"`
	FindOrigin    string        `env:"MINU_FIND_ORIGIN"     envDefault:"https://find.minu.best"`
	FrameOrigin   string        `env:"MINU_FRAME_ORIGIN"    envDefault:"https://frame.minu.best"`
	BuildOrigin   string        `env:"MINU_BUILD_ORIGIN"    envDefault:"https://build.minu.best"`
	KeepOrigin    string        `env:"MINU_KEEP_ORIGIN"     envDefault:"https://keep.minu.best"`
	Scopes        []string      `env:"MINU_SCOPES"          envDefault:"openid,profile,email" envSeparator:","`
	RedirectURIs  []string      `env:"MINU_REDIRECT_URIS"   envSeparator:","`
	WorkersAPIURL string        `env:"MINU_WORKERS_API_URL"`
	SessionTTL    time.Duration `env:"MINU_SESSION_TTL"     envDefault:"1h"`
	PendingTTL    time.Duration `env:"MINU_PENDING_TTL"     envDefault:"10m"`
	HTTPTimeout   time.Duration `env:"MINU_HTTP_TIMEOUT"    envDefault:"15s"`
}

var _ MinuConfig = Minu{}

func (m Minu) validate() error {
	if m.ClientID == "" {
		return fmt.Errorf("MINU_CLIENT_ID is required")
	}
	if m.SessionTTL <= 0 || m.PendingTTL <= 0 {
		return fmt.Errorf("MINU_SESSION_TTL and MINU_PENDING_TTL must be positive")
	}
	return nil
}

func (m Minu) GetClientID() string {
	return m.ClientID
}

// GetServiceOrigins is keyed by service name.
func (m Minu) GetServiceOrigins() map[string]string {
	return map[string]string{
		"find":  m.FindOrigin,
		"frame": m.FrameOrigin,
		"build": m.BuildOrigin,
		"keep":  m.KeepOrigin,
	}
}

func (m Minu) GetScopes() []string {
	return m.Scopes
}

// GetRedirectURIs is the callback allow-list; empty allows any absolute URL
func (m Minu) GetRedirectURIs() []string {
	return m.RedirectURIs
}

func (m Minu) GetWorkersAPIURL() string {
	return m.WorkersAPIURL
}

// GetSessionTTL applies to access tokens that carry no expiry of their own
func (m Minu) GetSessionTTL() time.Duration {
	return m.SessionTTL
}

func (m Minu) GetPendingTTL() time.Duration {
	return m.PendingTTL
}

func (m Minu) GetHTTPTimeout() time.Duration {
	return m.HTTPTimeout
}
