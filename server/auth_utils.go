package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/minu-sso/flow"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/rs/zerolog/log"
)

const (
	// browserCookieName identifies the browser whose state a request reads and writes
	browserCookieName = "minu_browser_id"
	browserCookieAge  = 365 * 24 * 60 * 60

	// returnToKey holds where to send the browser after the callback
	returnToKey = "minu_return_to"
)

// browserStore returns the part of the shared store owned by the calling browser,
// issuing a browser id cookie on first contact.
func (s *Server) browserStore(w http.ResponseWriter, r *http.Request) kv.Store {
	return kv.WithPrefix(s.store, "browser:"+s.browserID(w, r)+":")
}

// managerFor binds the flow manager to the calling browser's state
func (s *Server) managerFor(w http.ResponseWriter, r *http.Request) (*flow.Manager, kv.Store) {
	store := s.browserStore(w, r)
	return s.manager.WithStore(store), store
}

func (s *Server) browserID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(browserCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	s.SetBrowserCookie(w, r, id)
	return id
}

func (s *Server) SetBrowserCookie(w http.ResponseWriter, r *http.Request, id string) {
	isSecure := s.config.GetCookieSecure() || getScheme(r) == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     browserCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   browserCookieAge,
	})
}

// saveReturnTo keeps the return path for as long as the attempt it belongs to.
func saveReturnTo(ctx context.Context, store kv.Store, raw string, ttl time.Duration) {
	if err := kv.SetTTL(ctx, store, returnToKey, safeReturnTo(raw), ttl); err != nil {
		log.Err(err).Msg("failed to save return_to")
	}
}

// popReturnTo reads and forgets the saved return path; "/" when none was saved.
func popReturnTo(ctx context.Context, store kv.Store) string {
	v, err := store.Get(ctx, returnToKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Err(err).Msg("failed to read return_to")
		}
		return "/"
	}
	if err := store.Delete(ctx, returnToKey); err != nil {
		log.Err(err).Msg("failed to clear return_to")
	}
	return safeReturnTo(v)
}

// safeReturnTo only accepts local absolute paths so the callback cannot be used
// as an open redirect.
func safeReturnTo(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return raw
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the caller asked for a JSON response
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), mimeJSON)
}
