package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/minu-sso/flow"
	"github.com/jrsteele09/minu-sso/internal/config"
	"github.com/jrsteele09/minu-sso/kv"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	registry services.Registry
	store    kv.Store
	manager  *flow.Manager
	limiter  *RateLimiter
}

// New creates the HTTP server. manager is bound per request to the part of store
// owned by the calling browser.
func New(cfg config.Config, registry services.Registry, manager *flow.Manager, store kv.Store) (*Server, error) {
	if manager == nil || store == nil {
		return nil, fmt.Errorf("[Server New] manager and store are required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		registry: registry,
		store:    store,
		manager:  manager,
	}
	if cfg.GetEnableRateLimiting() {
		s.limiter = NewRateLimiter(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst(), rateLimiterCleanup)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops background work started by New
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// callbackURL is the redirect URI registered with the Minu services
func (s *Server) callbackURL() string {
	return s.config.GetBaseURL() + RouteMinuCallback
}

func (s *Server) logRoutes() {
	if !s.config.IsDev() {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
