package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/rs/zerolog/log"
)

// MinuLoginHandler starts a login and sends the browser to the service's
// authorization endpoint.
//
//	GET /auth/minu/login?service=find&scope=openid+profile&return_to=/dashboard
func (s *Server) MinuLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		service, err := services.Parse(q.Get("service"))
		if err != nil {
			s.renderCallbackFailure(w, r, newCallbackPage(nil, err, "/"), "")
			return
		}

		m, store := s.managerFor(w, r)
		attempt, err := m.Begin(r.Context(), service, s.callbackURL(), parseScopes(q.Get("scope")))
		if err != nil {
			log.Err(err).Str("service", string(service)).Msg("failed to start authorization")
			s.renderCallbackFailure(w, r, newCallbackPage(nil, err, "/"), service)
			return
		}
		saveReturnTo(r.Context(), store, q.Get("return_to"), m.PendingTTL())

		http.Redirect(w, r, attempt.URL, http.StatusSeeOther)
	}
}

// MinuCallbackHandler completes the login from the redirect back from a Minu
// service. Both the query string and form_post bodies are accepted.
func (s *Server) MinuCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			s.renderCallbackFailure(w, r, newCallbackPage(nil, apperrors.Wrapf(apperrors.ErrMalformedCallback, "parse form: %v", err), "/"), "")
			return
		}

		m, store := s.managerFor(w, r)
		returnTo := popReturnTo(r.Context(), store)

		out, err := m.Complete(r.Context(), r.Form)
		if err != nil {
			var service services.ID
			if out != nil {
				service = out.Service
			}
			s.renderCallbackFailure(w, r, newCallbackPage(out, err, returnTo), service)
			return
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, newSessionResponse(out.Record))
			return
		}
		redirectSuccess(w, r, returnTo)
	}
}

type sessionsResponse struct {
	Current  services.ID       `json:"current,omitempty"`
	Sessions []sessionResponse `json:"sessions"`
}

// SessionHandler reports the session of one service, or of all of them when no
// service is given.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, _ := s.managerFor(w, r)
		ctx := r.Context()

		raw := r.URL.Query().Get("service")
		if raw == "" {
			records, err := m.Sessions().List(ctx)
			if err != nil {
				writeJSONError(w, err)
				return
			}
			resp := sessionsResponse{Sessions: []sessionResponse{}}
			for _, rec := range records {
				if !m.Sessions().IsExpired(ctx, rec.Service) {
					resp.Sessions = append(resp.Sessions, newSessionResponse(rec))
				}
			}
			if current, err := m.Sessions().Current(ctx); err == nil {
				resp.Current = current
			}
			writeJSON(w, http.StatusOK, resp)
			return
		}

		service, err := services.Parse(raw)
		if err != nil {
			writeJSONError(w, err)
			return
		}
		record, err := m.RequireSession(ctx, service)
		switch {
		case apperrors.Classify(err) == apperrors.CategoryExpiredSession:
			writeJSON(w, http.StatusOK, sessionResponse{Service: service, Phase: m.Phase(ctx, service)})
		case err != nil:
			writeJSONError(w, err)
		default:
			writeJSON(w, http.StatusOK, newSessionResponse(record))
		}
	}
}

// RefreshHandler renews the access token of a service. Frontends call it after a
// Minu API answered 401.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service, err := services.Parse(r.URL.Query().Get("service"))
		if err != nil {
			writeJSONError(w, err)
			return
		}

		m, _ := s.managerFor(w, r)
		record, err := m.Refresh(r.Context(), service)
		if err != nil {
			log.Err(err).Str("service", string(service)).Msg("refresh failed")
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionResponse(record))
	}
}

// LogoutHandler revokes and clears the session of one service, or of every
// service with all=true.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		m, _ := s.managerFor(w, r)

		if all, _ := strconv.ParseBool(q.Get("all")); all {
			if err := m.LogoutAll(r.Context()); err != nil {
				writeJSONError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		service, err := services.Parse(q.Get("service"))
		if err != nil {
			writeJSONError(w, err)
			return
		}
		if err := m.Logout(r.Context(), service); err != nil {
			writeJSONError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type tokenExchangeRequest struct {
	Service string `json:"service"`
}

// TokenExchangeHandler trades the browser's Minu session for a Workers API token.
func (s *Server) TokenExchangeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenExchangeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			writeJSONError(w, apperrors.Wrapf(apperrors.ErrMalformedRequest, "decode body: %v", err))
			return
		}
		service, err := services.Parse(req.Service)
		if err != nil {
			writeJSONError(w, err)
			return
		}

		m, _ := s.managerFor(w, r)
		resp, err := m.ExchangeForWorkers(r.Context(), service)
		if err != nil {
			log.Err(err).Str("service", string(service)).Msg("workers token exchange failed")
			writeJSONError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// PreflightHandler answers OPTIONS requests that carry no Origin
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthHandler reports whether the session store is reachable.
func (s *Server) HealthHandler() http.HandlerFunc {
	type health struct {
		Status   string `json:"status"`
		Storage  string `json:"storage"`
		Services int    `json:"services"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := health{Status: "ok", Storage: "ok", Services: len(s.registry.List())}
		status := http.StatusOK

		if pinger, ok := s.store.(kv.Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				log.Err(err).Msg("health check: storage unreachable")
				resp.Status, resp.Storage = "degraded", "unreachable"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}

// parseScopes accepts space or comma separated scopes
func parseScopes(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ','
	})
}
