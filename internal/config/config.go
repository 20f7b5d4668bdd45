package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config interface {
	EnvConfig
	MinuConfig
	StorageConfig
	SecurityConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	IsDev() bool
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Minu
	Storage
	Security
	Cors
}

// New reads the configuration from the environment, applying defaults for
// anything unset.
func New() (Config, error) {
	var cfg mainConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("[config New] parse env: %w", err)
	}
	if err := cfg.Minu.validate(); err != nil {
		return nil, fmt.Errorf("[config New] %w", err)
	}
	return cfg, nil
}
