package config

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
	GetCookieSecure() bool
	GetTrustProxyHeaders() bool
}

type Security struct {
	RateLimitEnabled bool    `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     float64 `env:"RATE_LIMIT_RPS"     envDefault:"5"`
	RateLimitBurst   int     `env:"RATE_LIMIT_BURST"   envDefault:"20"`
	CookieSecure     bool    `env:"COOKIE_SECURE"      envDefault:"false"`
	// TrustProxyHeaders is only safe behind a proxy that overwrites X-Real-IP and X-Forwarded-For
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

var _ SecurityConfig = Security{}

func (s Security) GetEnableRateLimiting() bool {
	return s.RateLimitEnabled
}

func (s Security) GetRateLimitRPS() float64 {
	return s.RateLimitRPS
}

func (s Security) GetRateLimitBurst() int {
	return s.RateLimitBurst
}

// GetCookieSecure forces the Secure flag on cookies even for plain HTTP requests
func (s Security) GetCookieSecure() bool {
	return s.CookieSecure
}

func (s Security) GetTrustProxyHeaders() bool {
	return s.TrustProxyHeaders
}
