package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect identifies one of the two supported SQL engines. It is chosen once
// from configuration when the connection is opened and passed explicitly into
// every statement-translation and introspection decision; it is never inferred
// from probing the engine at runtime.
type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case SQLite:
		return SQLite, nil
	case MySQL:
		return MySQL, nil
	}
	return "", fmt.Errorf("unknown dialect %q (want %q or %q)", s, SQLite, MySQL)
}

// ByDialect holds one SQL fragment per engine. Definitions that need different
// syntax per engine declare both fragments as data instead of branching inline.
type ByDialect struct {
	SQLite string
	MySQL  string
}

func (b ByDialect) For(d Dialect) string {
	if d == MySQL {
		return b.MySQL
	}
	return b.SQLite
}

// Same is the degenerate ByDialect for statements both engines accept.
func Same(sql string) ByDialect {
	return ByDialect{SQLite: sql, MySQL: sql}
}

// Config is the explicit adapter configuration. It is built once at process
// start and handed to Open; nothing in this package reads ambient state.
type Config struct {
	Dialect Dialect
	DSN     string
}

// Result reports what a write statement did.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Handle is the statement surface shared by Adapter and Tx, so introspection
// probes and migration transforms can run inside or outside a transaction.
type Handle interface {
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter is the uniform execute/query/transaction surface over the two
// engines. It hides connection tuning, not statement syntax; callers that need
// per-engine SQL use ByDialect keyed on Dialect().
type Adapter struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the engine named by cfg.Dialect. Per-engine tuning (DSN
// parameters for MySQL, PRAGMAs for SQLite) happens here and only here.
func Open(cfg Config) (*Adapter, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Dialect {
	case MySQL:
		conn, err = openMySQL(cfg.DSN)
	case SQLite:
		conn, err = openSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("open: unknown dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, err
	}
	return &Adapter{db: conn, dialect: cfg.Dialect}, nil
}

// NewAdapter wraps an already-open pool. Used by tests that inject sqlmock.
func NewAdapter(conn *sql.DB, dialect Dialect) *Adapter {
	return &Adapter{db: conn, dialect: dialect}
}

func (a *Adapter) Dialect() Dialect { return a.dialect }

// DB exposes the underlying pool for callers that need a dedicated
// connection, such as the advisory lock.
func (a *Adapter) DB() *sql.DB { return a.db }

func (a *Adapter) Close() error { return a.db.Close() }

func (a *Adapter) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	return resultOf(res), nil
}

func (a *Adapter) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

func (a *Adapter) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

func (a *Adapter) Begin(ctx context.Context) (*Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, dialect: a.dialect}, nil
}

// Tx is a transaction-scoped Handle. Rollback undoes all statements issued
// since Begin on engines with transactional DDL; on MySQL, DDL statements
// implicitly commit, so Rollback is a best-effort signal there.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *Tx) Dialect() Dialect { return t.dialect }

func (t *Tx) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, err
	}
	return resultOf(res), nil
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func resultOf(res sql.Result) Result {
	// Errors here mean the driver cannot report the value, not that the
	// statement failed; zero is fine for DDL.
	affected, _ := res.RowsAffected()
	insertID, _ := res.LastInsertId()
	return Result{RowsAffected: affected, LastInsertID: insertID}
}
