package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracewire/tracewire/internal/db"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Dialect != "sqlite" || c.Table != "migrations" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.LockTimeout() != 30*time.Second {
		t.Fatal("default lock timeout mismatch")
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	body := "dialect: mysql\ndsn: user:pass@tcp(127.0.0.1:3306)/tracewire\nmigrations_table: schema_log\nlock_timeout_sec: 10\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dialect != "mysql" || cfg.Table != "schema_log" || cfg.LockTimeoutSec != 10 {
		t.Fatalf("yaml load mismatch: %+v", cfg)
	}

	t.Setenv("TRACEWIRE_DB_DIALECT", "sqlite")
	t.Setenv("TRACEWIRE_DB_DSN", "./env.db")
	t.Setenv("TRACEWIRE_MIGRATIONS_TABLE", "env_migrations")
	cfg, err = Load(p)
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.Dialect != "sqlite" || cfg.DSN != "./env.db" || cfg.Table != "env_migrations" {
		t.Fatalf("env should win over yaml: %+v", cfg)
	}
}

func TestAdapterConfig(t *testing.T) {
	cfg := Default()
	cfg.Dialect = "mysql"
	cfg.DSN = "u:p@tcp(h:3306)/d"
	ac, err := cfg.AdapterConfig()
	if err != nil {
		t.Fatalf("adapter config: %v", err)
	}
	if ac.Dialect != db.MySQL {
		t.Fatalf("dialect mismatch: %v", ac.Dialect)
	}

	cfg.Dialect = "postgres"
	if _, err := cfg.AdapterConfig(); err == nil {
		t.Fatal("expected error for unknown dialect")
	}

	cfg.Dialect = "sqlite"
	cfg.DSN = ""
	if _, err := cfg.AdapterConfig(); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
