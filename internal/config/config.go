// Package config loads the server configuration from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete server configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (HOMEDISK_*, e.g. HOMEDISK_JWT_SECRET)
//  2. Configuration file (TOML or YAML)
//  3. Default values
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Ops      OpsConfig      `mapstructure:"ops"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HTTPConfig controls the public API listener.
type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	CORS            []string      `mapstructure:"cors"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`

	// RateLimit is the sustained request rate per client IP (requests/second).
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gte=1"`
}

// Addr returns host:port for net.Listen.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OpsConfig controls the gRPC health/reflection listener. An empty Addr disables it.
type OpsConfig struct {
	Addr       string `mapstructure:"addr"`
	Reflection bool   `mapstructure:"reflection"`
}

// JWTConfig holds the token signing parameters.
type JWTConfig struct {
	Secret string `mapstructure:"secret" validate:"required,min=16"`
	// Expires is the token lifetime in hours.
	Expires int `mapstructure:"expires" validate:"gte=1"`
}

// StorageConfig locates the per-user directories.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// DatabaseConfig selects the user store.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres badger"`
	// DSN is the Postgres connection string.
	DSN string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	// Path is the SQLite file or Badger directory.
	Path string `mapstructure:"path"`
}

// AuthConfig controls credential hashing and login lockout.
type AuthConfig struct {
	HashScheme      string        `mapstructure:"hash_scheme" validate:"oneof=sha512 argon2id"`
	LockoutWindow   time.Duration `mapstructure:"lockout_window" validate:"gt=0"`
	LockoutMaxFails int           `mapstructure:"lockout_max_fails" validate:"gte=1"`
	LockoutBlock    time.Duration `mapstructure:"lockout_block" validate:"gt=0"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// Output is stdout, stderr, or a file path rotated daily.
	Output string        `mapstructure:"output" validate:"required"`
	MaxAge time.Duration `mapstructure:"max_age" validate:"gte=0"`
}

// keys lists every leaf key so that environment variables are honoured even
// when the file does not mention them.
var keys = []string{
	"http.host", "http.port", "http.cors", "http.request_timeout", "http.shutdown_timeout",
	"http.rate_limit", "http.rate_burst",
	"ops.addr", "ops.reflection",
	"jwt.secret", "jwt.expires",
	"storage.path",
	"database.driver", "database.dsn", "database.path",
	"auth.hash_scheme", "auth.lockout_window", "auth.lockout_max_fails", "auth.lockout_block",
	"logging.level", "logging.format", "logging.output", "logging.max_age",
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath uses the default location; a missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) error {
	// HOMEDISK_LOGGING_LEVEL=debug overrides logging.level
	v.SetEnvPrefix("HOMEDISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return nil
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("toml")
	return nil
}

func readConfigFile(v *viper.Viper, configPath string) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if configPath == "" && (errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("failed to read config file: %w", err)
}

// getConfigDir returns $XDG_CONFIG_HOME/homedisk, falling back to ~/.config/homedisk.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "homedisk")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "homedisk")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.toml")
}

// Dir returns the configuration directory. The CLI keeps its token there.
func Dir() string {
	return getConfigDir()
}
