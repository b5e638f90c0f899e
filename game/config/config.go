package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full server configuration surface.
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port string `env:"PORT" envDefault:"8080"`

	ConcurrencyPerOwner  int `env:"CONCURRENCY_PER_SID" envDefault:"3"`
	GameTTLMinutes       int `env:"GAME_TTL_MINUTES" envDefault:"30"`
	SweepIntervalSeconds int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`

	EnginePath    string `env:"ENGINE_PATH"`
	ModelPath     string `env:"MODEL_PATH"`
	GTPConfigPath string `env:"GTP_CONFIG_PATH"`

	ExercisesDir string `env:"EXERCISES_DIR" envDefault:"exercises"`
	ExercisesDB  string `env:"EXERCISES_DB"`

	NgrokEnabled bool   `env:"NGROK_ENABLED"`
	NgrokToken   string `env:"NGROK_AUTHTOKEN"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ConcurrencyPerOwner < 1 {
		return fmt.Errorf("%w: CONCURRENCY_PER_SID must be at least 1", ErrInvalidConfig)
	}
	if c.GameTTLMinutes < 1 {
		return fmt.Errorf("%w: GAME_TTL_MINUTES must be at least 1", ErrInvalidConfig)
	}
	if c.SweepIntervalSeconds < 1 {
		return fmt.Errorf("%w: SWEEP_INTERVAL_SECONDS must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// EngineConfigured reports whether a real engine binary can be
// spawned. All three paths are required; otherwise the server runs
// with the placeholder adapter.
func (c *Config) EngineConfigured() bool {
	return c.EnginePath != "" && c.ModelPath != "" && c.GTPConfigPath != ""
}

// Addr is the host:port pair the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// GameTTL is the idle duration after which sessions are reclaimed.
func (c *Config) GameTTL() time.Duration {
	return time.Duration(c.GameTTLMinutes) * time.Minute
}

// SweepInterval is the reclamation sweeper's tick period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
