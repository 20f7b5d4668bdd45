package server

// Route path constants
const (
	// Minu login flow
	RouteMinuLogin    = "/auth/minu/login"
	RouteMinuCallback = "/auth/minu/callback"

	// Session API
	RouteMinuSession       = "/auth/minu/session"
	RouteMinuRefresh       = "/auth/minu/refresh"
	RouteMinuLogout        = "/auth/minu/logout"
	RouteMinuTokenExchange = "/auth/minu/token/exchange"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)
