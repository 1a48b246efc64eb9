package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tracewire/tracewire/internal/config"
	"github.com/tracewire/tracewire/internal/db"
	"github.com/tracewire/tracewire/internal/logger"
	"github.com/tracewire/tracewire/internal/migrate"
)

const (
	exitOK     = 0
	exitUsage  = 2
	exitLocked = 3
	exitFail   = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		usage()
		return exitOK
	}
	cmd := os.Args[1]

	global := flag.NewFlagSet("global", flag.ContinueOnError)
	dialect := global.String("dialect", "", "Database dialect: sqlite or mysql (or TRACEWIRE_DB_DIALECT)")
	dsn := global.String("dsn", "", "Database DSN (or TRACEWIRE_DB_DSN)")
	table := global.String("table", "", "Bookkeeping table name (default migrations)")
	conf := global.String("config", "", "Optional YAML config path")
	jsonOut := global.Bool("json", false, "JSON logs/output")
	lockTimeout := global.Int("lock-timeout", 0, "Advisory lock timeout seconds (MySQL only)")

	argStart := 2
	switch cmd {
	case "up", "status":
	case "rollback":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "rollback requires a migration <id>")
			return exitUsage
		}
		argStart = 3
	default:
		usage()
		return exitUsage
	}
	if err := global.Parse(os.Args[argStart:]); err != nil {
		return exitUsage
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitUsage
	}
	if *dialect != "" {
		cfg.Dialect = *dialect
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if *table != "" {
		cfg.Table = *table
	}
	if *jsonOut {
		cfg.JSONLogs = true
	}
	if *lockTimeout > 0 {
		cfg.LockTimeoutSec = *lockTimeout
	}

	log := logger.New(cfg.JSONLogs)

	adapterCfg, err := cfg.AdapterConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	adapter, err := db.Open(adapterCfg)
	if err != nil {
		log.Error("db open failed", map[string]any{"error": err.Error(), "dialect": cfg.Dialect})
		return exitFail
	}
	defer adapter.Close()

	runner, err := migrate.NewRunner(adapter, migrate.Catalog(), cfg.Table, log)
	if err != nil {
		log.Error("invalid catalog", map[string]any{"error": err.Error()})
		return exitFail
	}
	runner.SetLockTimeout(cfg.LockTimeout())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch cmd {
	case "up":
		if err := runner.Run(ctx); err != nil {
			if errors.Is(err, migrate.ErrLockTimeout) {
				log.Error("another process holds the migration lock", map[string]any{"error": err.Error()})
				return exitLocked
			}
			log.Error("migrations failed", map[string]any{"error": err.Error()})
			return exitFail
		}
		return exitOK
	case "rollback":
		id := os.Args[2]
		if err := runner.Rollback(ctx, id); err != nil {
			switch {
			case errors.Is(err, migrate.ErrUnknownMigration),
				errors.Is(err, migrate.ErrNotApplied),
				errors.Is(err, migrate.ErrIrreversible):
				log.Error("rollback rejected", map[string]any{"id": id, "error": err.Error()})
				return exitUsage
			case errors.Is(err, migrate.ErrLockTimeout):
				log.Error("another process holds the migration lock", map[string]any{"error": err.Error()})
				return exitLocked
			}
			log.Error("rollback failed", map[string]any{"id": id, "error": err.Error()})
			return exitFail
		}
		return exitOK
	case "status":
		entries, err := runner.Status(ctx)
		if err != nil {
			log.Error("status failed", map[string]any{"error": err.Error()})
			return exitFail
		}
		printStatus(entries, log)
		return exitOK
	}
	return exitOK
}

func printStatus(entries []migrate.StatusEntry, log *logger.Logger) {
	if log.JSONEnabled() {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(entries)
		return
	}
	for _, e := range entries {
		state := "pending"
		at := ""
		if e.Applied {
			state = "applied"
			at = e.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Printf("%s  %-28s %-8s %s\n", e.ID, e.Name, state, at)
	}
}

func usage() {
	fmt.Println(`tracewire - schema migration runner

USAGE:
  tracewire <command> [args] [--flags]

COMMANDS:
  up              Apply all pending migrations (run at startup before serving)
  rollback <id>   Revert exactly one applied migration
  status          Show applied/pending state in catalog order

GLOBAL FLAGS:
  --dialect <d>        sqlite or mysql (or TRACEWIRE_DB_DIALECT)
  --dsn <dsn>          Database DSN (or TRACEWIRE_DB_DSN)
  --table <name>       Bookkeeping table (default migrations)
  --config <path>      Optional YAML config path
  --json               JSON logs and status output
  --lock-timeout <sec> Advisory lock timeout, MySQL only (default 30)

EXAMPLES:
  tracewire up --dialect sqlite --dsn ./tracewire.db
  tracewire up --dialect mysql --dsn "user:pass@tcp(127.0.0.1:3306)/tracewire"
  tracewire rollback 0006 --dialect sqlite --dsn ./tracewire.db
  tracewire status --json --dialect sqlite --dsn ./tracewire.db`)
}
