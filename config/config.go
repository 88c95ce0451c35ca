// Package config loads the bankledger service configuration from the
// environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/xraph/bankledger/transfer"
)

// Store drivers understood by the service.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the service configuration. Every field can be overridden
// by the environment variable named in its env tag.
type Config struct {
	// Addr is the HTTP listen address (default: ":8080").
	Addr string `env:"BANKLEDGER_ADDR" json:"addr"`

	// StoreDriver selects the storage backend: memory, sqlite, postgres or
	// mongo (default: memory).
	StoreDriver string `env:"BANKLEDGER_STORE_DRIVER" json:"store_driver"`

	// StoreDSN is the driver-specific connection string. Ignored by the
	// memory driver.
	StoreDSN string `env:"BANKLEDGER_STORE_DSN" json:"store_dsn"`

	// MongoDatabase names the database used by the mongo driver
	// (default: "bankledger").
	MongoDatabase string `env:"BANKLEDGER_MONGO_DATABASE" json:"mongo_database"`

	// DisableMigrate skips schema migration on start.
	DisableMigrate bool `env:"BANKLEDGER_DISABLE_MIGRATE" json:"disable_migrate"`

	// LogLevel is one of debug, info, warn, error (default: info).
	LogLevel slog.Level `env:"BANKLEDGER_LOG_LEVEL" json:"log_level"`

	// LogFormat is "json" or "text" (default: json).
	LogFormat string `env:"BANKLEDGER_LOG_FORMAT" json:"log_format"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `env:"BANKLEDGER_PLUGIN_TIMEOUT" json:"plugin_timeout"`

	// TransferWindow is how long, in logical milliseconds, a transfer can
	// be accepted (default: one day).
	TransferWindow int64 `env:"BANKLEDGER_TRANSFER_WINDOW" json:"transfer_window"`

	// ShutdownTimeout bounds graceful HTTP shutdown (default: 10s).
	ShutdownTimeout time.Duration `env:"BANKLEDGER_SHUTDOWN_TIMEOUT" json:"shutdown_timeout"`

	// DisableAudit turns off the audit log plugin.
	DisableAudit bool `env:"BANKLEDGER_DISABLE_AUDIT" json:"disable_audit"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		StoreDriver:     DriverMemory,
		MongoDatabase:   "bankledger",
		LogLevel:        slog.LevelInfo,
		LogFormat:       "json",
		PluginTimeout:   5 * time.Second,
		TransferWindow:  transfer.Day,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load returns DefaultConfig overridden by the environment.
func Load() (Config, error) {
	cfg := DefaultConfig()
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables into target.
// Fields whose variables are unset keep their current values.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks field combinations that env parsing cannot.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres, DriverMongo:
		if c.StoreDSN == "" {
			return fmt.Errorf("config: store driver %q requires BANKLEDGER_STORE_DSN", c.StoreDriver)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}

	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}

	if c.TransferWindow <= 0 {
		return fmt.Errorf("config: transfer window must be positive, got %d", c.TransferWindow)
	}
	return nil
}
