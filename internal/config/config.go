// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"agent-pump/internal/address"
	"agent-pump/internal/curve"
	"agent-pump/internal/ledger"
	"agent-pump/internal/logging"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds all settings of the service.
type Config struct {
	Server struct {
		Addr            string        `yaml:"addr"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimit       struct {
			RequestsPerMinute float64 `yaml:"requests_per_minute"`
			Burst             int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Storage struct {
		Backend       string `yaml:"backend"`
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
		Migrate       bool   `yaml:"migrate"`

		PostgresMaxConns int32         `yaml:"postgres_max_conns"`
		LockTimeout      time.Duration `yaml:"lock_timeout"`
		TxAttempts       int           `yaml:"tx_attempts"`
	} `yaml:"storage"`

	Program struct {
		ID string `yaml:"id"`
	} `yaml:"program"`

	Policy curve.Policy `yaml:"policy"`

	Ledger struct {
		FeaturedReputation int64           `yaml:"featured_reputation"`
		LaunchBonus        int64           `yaml:"launch_bonus"`
		ReputationPerUnit  decimal.Decimal `yaml:"reputation_per_unit"`
	} `yaml:"ledger"`

	Events struct {
		AMQPURL      string `yaml:"amqp_url"`
		Exchange     string `yaml:"exchange"`
		Durable      bool   `yaml:"durable"`
		StreamBuffer int    `yaml:"stream_buffer"`
	} `yaml:"events"`

	Logging logging.Config `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config

	cfg.Server.Addr = ":8080"
	cfg.Server.ReadTimeout = 10 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.RateLimit.RequestsPerMinute = 600
	cfg.Server.RateLimit.Burst = 50

	cfg.Storage.Backend = BackendMemory
	cfg.Storage.Migrate = true
	cfg.Storage.LockTimeout = 5 * time.Second
	cfg.Storage.TxAttempts = 3

	cfg.Program.ID = address.DefaultProgramID
	cfg.Policy = curve.DefaultPolicy

	cfg.Ledger.FeaturedReputation = ledger.DefaultFeaturedReputation
	cfg.Ledger.LaunchBonus = 100
	cfg.Ledger.ReputationPerUnit = decimal.NewFromInt(1)

	cfg.Events.Exchange = "agentpump.fills"
	cfg.Events.Durable = true
	cfg.Events.StreamBuffer = 64

	cfg.Logging = logging.DefaultConfig()
	return &cfg
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit.RequestsPerMinute < 0 || c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Storage.PostgresMaxConns < 0 || c.Storage.LockTimeout < 0 || c.Storage.TxAttempts < 0 {
		return fmt.Errorf("storage pool settings must not be negative")
	}
	if c.Storage.ClickhouseDSN != "" && !strings.HasPrefix(c.Storage.ClickhouseDSN, "clickhouse://") {
		return fmt.Errorf("storage.clickhouse_dsn must start with clickhouse://")
	}

	if _, err := address.NewDeriver(c.Program.ID); err != nil {
		return fmt.Errorf("program.id: %w", err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	if c.Ledger.FeaturedReputation < 0 || c.Ledger.LaunchBonus < 0 {
		return fmt.Errorf("ledger thresholds must not be negative")
	}
	if c.Ledger.ReputationPerUnit.IsNegative() {
		return fmt.Errorf("ledger.reputation_per_unit must not be negative")
	}

	if c.Events.AMQPURL != "" && !strings.HasPrefix(c.Events.AMQPURL, "amqp://") && !strings.HasPrefix(c.Events.AMQPURL, "amqps://") {
		return fmt.Errorf("events.amqp_url must start with amqp:// or amqps://")
	}

	return c.Logging.Validate()
}

// overrideWithEnv replaces settings with environment variables when set.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("AGENTPUMP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AGENTPUMP_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("AGENTPUMP_PROGRAM_ID"); v != "" {
		cfg.Program.ID = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("AGENTPUMP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
