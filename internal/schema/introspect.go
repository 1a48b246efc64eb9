// Package schema answers existence questions about tables, columns and
// indexes so migration transforms can be written defensively against
// databases that already reflect part of a later logical state.
package schema

import (
	"context"

	"github.com/tracewire/tracewire/internal/db"
)

// Introspector probes the engine catalog for the configured dialect. Probing
// an object that does not exist returns false, never an error; only genuine
// engine failures surface.
type Introspector struct {
	h       db.Handle
	dialect db.Dialect
}

// New builds an Introspector over h. Pass a *db.Tx to probe uncommitted
// schema state inside a transaction, or the *db.Adapter for committed state.
func New(h db.Handle, dialect db.Dialect) *Introspector {
	return &Introspector{h: h, dialect: dialect}
}

func (in *Introspector) TableExists(ctx context.Context, table string) (bool, error) {
	stmt := db.ByDialect{
		SQLite: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		MySQL:  `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
	}
	return in.countNonZero(ctx, stmt.For(in.dialect), table)
}

func (in *Introspector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	// pragma_table_info yields zero rows for a missing table, which collapses
	// to false here as required.
	stmt := db.ByDialect{
		SQLite: `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		MySQL:  `SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`,
	}
	return in.countNonZero(ctx, stmt.For(in.dialect), table, column)
}

func (in *Introspector) IndexExists(ctx context.Context, index string) (bool, error) {
	stmt := db.ByDialect{
		SQLite: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`,
		MySQL:  `SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND index_name = ?`,
	}
	return in.countNonZero(ctx, stmt.For(in.dialect), index)
}

func (in *Introspector) countNonZero(ctx context.Context, query string, args ...any) (bool, error) {
	var n int64
	if err := in.h.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
