// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Addr string `env:"LOANLEDGER_ADDR" envDefault:":8080"`

	DBDriver string `env:"LOANLEDGER_DB_DRIVER" envDefault:"sqlite"`
	DBPath   string `env:"LOANLEDGER_DB_PATH"   envDefault:"./data/loans.db"`

	DatabaseURL       string        `env:"LOANLEDGER_DATABASE_URL"`
	DBMaxConns        int32         `env:"LOANLEDGER_DB_MAX_CONNS"         envDefault:"10"`
	DBMinConns        int32         `env:"LOANLEDGER_DB_MIN_CONNS"         envDefault:"0"`
	DBMaxConnLifetime time.Duration `env:"LOANLEDGER_DB_MAX_CONN_LIFETIME" envDefault:"30m"`

	ShutdownTimeout time.Duration `env:"LOANLEDGER_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat string `env:"LOANLEDGER_LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("LOANLEDGER_DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("LOANLEDGER_DATABASE_URL is required for the postgres driver")
		}
		if c.DBMaxConns < 1 {
			return fmt.Errorf("LOANLEDGER_DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("LOANLEDGER_DB_MIN_CONNS must be between 0 and %d, got %d", c.DBMaxConns, c.DBMinConns)
		}
	default:
		return fmt.Errorf("unknown LOANLEDGER_DB_DRIVER %q", c.DBDriver)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown LOANLEDGER_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
