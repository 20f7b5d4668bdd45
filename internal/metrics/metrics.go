package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthorizationsStarted counts authorization URLs handed out per service
	AuthorizationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minu_sso_authorizations_started_total",
			Help: "Total number of authorization requests built by service",
		},
		[]string{"service"},
	)

	// CallbacksReceived counts callbacks by service and error category
	CallbacksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minu_sso_callbacks_received_total",
			Help: "Total number of authorization callbacks by service and result",
		},
		[]string{"service", "result"},
	)

	// TokenRequests counts calls to the token, revocation and Workers endpoints
	TokenRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minu_sso_token_requests_total",
			Help: "Total number of outbound token endpoint requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	// TokenRequestDuration tracks outbound token endpoint latency
	TokenRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minu_sso_token_request_duration_seconds",
			Help:    "Duration of outbound token endpoint requests",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// SessionsExpired counts sessions found expired and cleared on access
	SessionsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minu_sso_sessions_expired_total",
			Help: "Total number of sessions found expired on access",
		},
		[]string{"service"},
	)

	// HTTPRequestDuration tracks HTTP request duration by route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minu_sso_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by route and status",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status"},
	)

	// RateLimitHits tracks rate limit hits
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "minu_sso_rate_limit_hits_total",
			Help: "Total number of requests that hit rate limits",
		},
	)
)

// RecordCallback records a callback outcome. result is "success" or an error category.
func RecordCallback(service, result string) {
	CallbacksReceived.WithLabelValues(service, result).Inc()
}

// RecordTokenRequest records an outbound token request with its duration
func RecordTokenRequest(operation, result string, seconds float64) {
	TokenRequests.WithLabelValues(operation, result).Inc()
	TokenRequestDuration.WithLabelValues(operation).Observe(seconds)
}
