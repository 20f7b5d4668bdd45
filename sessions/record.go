package sessions

import (
	"time"

	"github.com/jrsteele09/minu-sso/services"
)

// Record is the locally stored session for one Minu service.
// Created on a successful callback, read before every authenticated call and
// deleted on logout or once found expired.
type Record struct {
	Service      services.ID `json:"service"`
	AccessToken  string      `json:"-"`
	RefreshToken string      `json:"-"`
	UserID       string      `json:"user_id,omitempty"`
	Plan         string      `json:"plan,omitempty"`
	Status       string      `json:"status,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Expired reports whether the record is no longer usable at now.
// A record expires at exactly ExpiresAt.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HasRefreshToken reports whether the session can be refreshed
func (r *Record) HasRefreshToken() bool {
	return r.RefreshToken != ""
}
