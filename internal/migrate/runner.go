// Package migrate drives sequential, transactional application of the
// versioned schema catalog against either supported engine, and records what
// has been applied in the bookkeeping table.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tracewire/tracewire/internal/db"
	"github.com/tracewire/tracewire/internal/logger"
	"github.com/tracewire/tracewire/internal/schema"
)

var (
	// ErrUnknownMigration: the id is not in the catalog.
	ErrUnknownMigration = errors.New("unknown migration id")
	// ErrNotApplied: rollback requested for an id with no record.
	ErrNotApplied = errors.New("migration is not applied")
	// ErrIrreversible: the definition's down is tagged DownUnsupported.
	ErrIrreversible = errors.New("migration is not reversible")
)

// Runner applies the catalog in order, one transaction per definition. A
// single process runs it at startup before serving traffic; concurrent runs
// against the same MySQL database are serialized by an advisory lock.
type Runner struct {
	adapter     *db.Adapter
	catalog     []Definition
	table       string
	log         *logger.Logger
	lockTimeout time.Duration
}

func NewRunner(adapter *db.Adapter, catalog []Definition, table string, log *logger.Logger) (*Runner, error) {
	if err := VerifyCatalog(catalog); err != nil {
		return nil, err
	}
	if table == "" {
		table = "migrations"
	}
	return &Runner{
		adapter:     adapter,
		catalog:     catalog,
		table:       table,
		log:         log,
		lockTimeout: 30 * time.Second,
	}, nil
}

// SetLockTimeout overrides how long Run and Rollback wait on the MySQL
// advisory lock.
func (r *Runner) SetLockTimeout(d time.Duration) { r.lockTimeout = d }

// VerifyCatalog rejects catalogs that violate the append-only contract:
// empty or duplicate ids, ids out of order, or a missing down for a
// definition not tagged DownUnsupported.
func VerifyCatalog(catalog []Definition) error {
	seen := make(map[string]struct{}, len(catalog))
	prev := ""
	for _, def := range catalog {
		if def.ID == "" {
			return fmt.Errorf("catalog: definition %q has empty id", def.Name)
		}
		if _, dup := seen[def.ID]; dup {
			return fmt.Errorf("catalog: duplicate id %s", def.ID)
		}
		seen[def.ID] = struct{}{}
		if def.ID <= prev {
			return fmt.Errorf("catalog: id %s out of order after %s", def.ID, prev)
		}
		prev = def.ID
		if def.Up == nil {
			return fmt.Errorf("catalog: %s has no up", def.ID)
		}
		if def.Down == nil && def.DownPolicy != DownUnsupported {
			return fmt.Errorf("catalog: %s has no down but is tagged %s", def.ID, def.DownPolicy)
		}
	}
	return nil
}

// Run applies every definition not yet recorded, in catalog order. On the
// first failure it rolls back that definition's transaction and halts;
// partial application is preferable to skipping a failed step, because later
// definitions may assume its effects.
func (r *Runner) Run(ctx context.Context) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		if err := r.ensureTable(ctx); err != nil {
			return fmt.Errorf("ensure %s table: %w", r.table, err)
		}
		applied, err := r.appliedSet(ctx)
		if err != nil {
			return err
		}
		pending := 0
		for _, def := range r.catalog {
			if _, ok := applied[def.ID]; ok {
				continue
			}
			pending++
			if err := r.apply(ctx, def); err != nil {
				return err
			}
		}
		r.log.Info("migrations complete", map[string]any{
			"applied": pending,
			"total":   len(r.catalog),
			"dialect": string(r.adapter.Dialect()),
		})
		return nil
	})
}

// Rollback reverts exactly one applied definition. The record is deleted only
// after the down transform succeeds; on failure the record stays and the
// error propagates.
func (r *Runner) Rollback(ctx context.Context, id string) error {
	def, ok := r.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMigration, id)
	}
	if def.DownPolicy == DownUnsupported {
		return fmt.Errorf("%w: %s (%s)", ErrIrreversible, id, def.Name)
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		// Operator error is rejected before any database mutation: a missing
		// bookkeeping table just means nothing was ever applied.
		probe := schema.New(r.adapter, r.adapter.Dialect())
		exists, err := probe.TableExists(ctx, r.table)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrNotApplied, id)
		}
		applied, err := r.appliedSet(ctx)
		if err != nil {
			return err
		}
		if _, ok := applied[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotApplied, id)
		}

		tx, err := r.adapter.Begin(ctx)
		if err != nil {
			return err
		}
		step := newStep(tx, r.log)
		if err := def.Down(ctx, step); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("rollback %s %s: %w", def.ID, def.Name, err)
		}
		if _, err := tx.Execute(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.table), def.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete record %s: %w", def.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		r.log.Info("migration rolled back", map[string]any{
			"id":     def.ID,
			"name":   def.Name,
			"policy": def.DownPolicy.String(),
		})
		return nil
	})
}

func (r *Runner) apply(ctx context.Context, def Definition) error {
	start := time.Now()
	tx, err := r.adapter.Begin(ctx)
	if err != nil {
		return err
	}
	step := newStep(tx, r.log)
	if err := def.Up(ctx, step); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %s %s: %w", def.ID, def.Name, err)
	}
	if _, err := tx.Execute(ctx,
		fmt.Sprintf("INSERT INTO %s (id, name) VALUES (?, ?)", r.table),
		def.ID, def.Name,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", def.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", def.ID, err)
	}
	r.log.Info("migration applied", map[string]any{
		"id":          def.ID,
		"name":        def.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func (r *Runner) ensureTable(ctx context.Context) error {
	ddl := db.ByDialect{
		SQLite: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, r.table),
		MySQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id VARCHAR(64) PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, r.table),
	}
	_, err := r.adapter.Execute(ctx, ddl.For(r.adapter.Dialect()))
	return err
}

// appliedSet loads the recorded ids. Row existence is the sole source of
// truth for "already applied"; timestamps are only read by Status.
func (r *Runner) appliedSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.adapter.Query(ctx, fmt.Sprintf("SELECT id FROM %s", r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func (r *Runner) find(id string) (Definition, bool) {
	for _, def := range r.catalog {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}
