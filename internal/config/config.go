// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	PrimaryPostgres = "postgres"
	PrimaryMemory   = "memory"
	PrimaryNone     = "none"
)

// Config is shared by cmd/server and cmd/gymadmin.
type Config struct {
	HTTPAddr    string `env:"GYMDESK_HTTP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	// Primary selects the primary store. Empty picks postgres when
	// DatabaseURL is set and none otherwise.
	Primary       string `env:"GYMDESK_PRIMARY"`
	CachePath     string `env:"GYMDESK_CACHE_PATH" envDefault:"gymdesk-cache.db"`
	ClientStorage bool   `env:"GYMDESK_CLIENT_STORAGE" envDefault:"true"`

	ExpiringWindowDays int `env:"GYMDESK_EXPIRING_WINDOW_DAYS" envDefault:"30"`

	LogLevel     string `env:"GYMDESK_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"GYMDESK_LOG_FORMAT" envDefault:"text"`
	OTLPEndpoint string `env:"GYMDESK_OTLP_ENDPOINT"`

	AdminUser     string `env:"GYMDESK_ADMIN_USER" envDefault:"admin"`
	AdminPassword string `env:"GYMDESK_ADMIN_PASSWORD"`

	RegistrationBurst    int           `env:"GYMDESK_REGISTRATION_BURST" envDefault:"5"`
	RegistrationInterval time.Duration `env:"GYMDESK_REGISTRATION_INTERVAL" envDefault:"1m"`

	APIURL string `env:"GYMDESK_API_URL" envDefault:"http://localhost:8080"`
}

// Load parses the environment and checks the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Primary = strings.ToLower(strings.TrimSpace(c.Primary))
	if c.Primary == "" {
		if c.DatabaseURL != "" {
			c.Primary = PrimaryPostgres
		} else {
			c.Primary = PrimaryNone
		}
	}
	switch c.Primary {
	case PrimaryPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: GYMDESK_PRIMARY=postgres requires DATABASE_URL")
		}
	case PrimaryMemory, PrimaryNone:
	default:
		return fmt.Errorf("config: unknown primary store %q", c.Primary)
	}
	if c.ExpiringWindowDays < 0 {
		return fmt.Errorf("config: expiring window must not be negative")
	}
	if c.RegistrationBurst < 1 {
		return fmt.Errorf("config: registration burst must be at least 1")
	}
	if c.RegistrationInterval <= 0 {
		return fmt.Errorf("config: registration interval must be positive")
	}
	return nil
}
