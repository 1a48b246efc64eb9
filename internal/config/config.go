package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tracewire/tracewire/internal/db"
)

// Config is the process configuration. Precedence, lowest first: defaults,
// YAML file, environment. The dialect is decided here, once, and carried
// explicitly from this point on.
type Config struct {
	Dialect        string `yaml:"dialect" env:"TRACEWIRE_DB_DIALECT"`
	DSN            string `yaml:"dsn" env:"TRACEWIRE_DB_DSN"`
	Table          string `yaml:"migrations_table" env:"TRACEWIRE_MIGRATIONS_TABLE"`
	JSONLogs       bool   `yaml:"json_logs" env:"TRACEWIRE_JSON_LOGS"`
	LockTimeoutSec int    `yaml:"lock_timeout_sec" env:"TRACEWIRE_LOCK_TIMEOUT_SEC"`
}

func Default() *Config {
	return &Config{
		Dialect:        string(db.SQLite),
		DSN:            "tracewire.db",
		Table:          "migrations",
		LockTimeoutSec: 30,
	}
}

// Load reads the optional YAML file at path, then overlays environment
// variables. An empty path skips the file stage.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AdapterConfig validates the dialect string and produces the explicit
// adapter configuration.
func (c *Config) AdapterConfig() (db.Config, error) {
	dialect, err := db.ParseDialect(c.Dialect)
	if err != nil {
		return db.Config{}, err
	}
	if c.DSN == "" {
		return db.Config{}, fmt.Errorf("dsn is required (set dsn in config or TRACEWIRE_DB_DSN)")
	}
	return db.Config{Dialect: dialect, DSN: c.DSN}, nil
}

func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTimeoutSec) * time.Second
}
