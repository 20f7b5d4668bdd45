package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// LOGIN
	s.RegisterRouteHandler("GET "+RouteMinuLogin, ChainMiddleware(s.MinuLoginHandler(), s.HTMLMiddleware(RouteMinuLogin)...))
	s.RegisterRouteHandler("GET "+RouteMinuCallback, ChainMiddleware(s.MinuCallbackHandler(), s.HTMLMiddleware(RouteMinuCallback)...))
	s.RegisterRouteHandler("POST "+RouteMinuCallback, ChainMiddleware(s.MinuCallbackHandler(), s.HTMLMiddleware(RouteMinuCallback)...)) // form_post response mode

	// Session API
	s.RegisterRouteHandler("GET "+RouteMinuSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware(RouteMinuSession)...))
	s.RegisterRouteHandler("POST "+RouteMinuRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(RouteMinuRefresh)...))
	s.RegisterRouteHandler("POST "+RouteMinuLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware(RouteMinuLogout)...))
	s.RegisterRouteHandler("POST "+RouteMinuTokenExchange, ChainMiddleware(s.TokenExchangeHandler(), s.APIMiddleware(RouteMinuTokenExchange)...))
	s.RegisterRouteHandler("OPTIONS /auth/minu/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware("preflight")...))

	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.RecoverMiddleware))
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}
