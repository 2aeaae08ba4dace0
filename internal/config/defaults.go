package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills zero-valued fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyHTTPDefaults(&cfg.HTTP)
	applyJWTDefaults(&cfg.JWT)
	applyDatabaseDefaults(&cfg.Database)
	applyAuthDefaults(&cfg.Auth)
	applyLoggingDefaults(&cfg.Logging)
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 50
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 100
	}
}

func applyJWTDefaults(cfg *JWTConfig) {
	if cfg.Expires == 0 {
		cfg.Expires = 24
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	cfg.Driver = strings.ToLower(cfg.Driver)
	if cfg.Path == "" {
		switch cfg.Driver {
		case "badger":
			cfg.Path = "homedisk.badger"
		default:
			cfg.Path = "homedisk.db"
		}
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.HashScheme == "" {
		cfg.HashScheme = "sha512"
	}
	cfg.HashScheme = strings.ToLower(cfg.HashScheme)
	if cfg.LockoutWindow == 0 {
		cfg.LockoutWindow = 15 * time.Minute
	}
	if cfg.LockoutMaxFails == 0 {
		cfg.LockoutMaxFails = 5
	}
	if cfg.LockoutBlock == 0 {
		cfg.LockoutBlock = 15 * time.Minute
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	cfg.Level = strings.ToLower(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
}
