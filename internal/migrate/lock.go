package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tracewire/tracewire/internal/db"
)

// ErrLockTimeout is returned when another process holds the migration lock
// past the configured wait.
var ErrLockTimeout = errors.New("migration lock wait timeout")

// advisoryLock serializes concurrent runners on MySQL via GET_LOCK on a
// dedicated connection; the lock lives for the whole run, not per statement.
// SQLite needs none of this: its single-writer file lock plus busy_timeout
// already serializes writers.
type advisoryLock struct {
	key  string
	conn *sql.Conn
	held bool
}

func lockKey(table string) string {
	return fmt.Sprintf("tracewire:migrate:%s", table)
}

func (l *advisoryLock) acquire(ctx context.Context, pool *sql.DB, timeout time.Duration) error {
	if l.held {
		return nil
	}
	var err error
	l.conn, err = pool.Conn(ctx)
	if err != nil {
		return err
	}
	row := l.conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.key, int(timeout.Seconds()))
	var got sql.NullInt64
	if err := row.Scan(&got); err != nil {
		_ = l.conn.Close()
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		_ = l.conn.Close()
		return fmt.Errorf("%w: key %s", ErrLockTimeout, l.key)
	}
	l.held = true
	return nil
}

func (l *advisoryLock) release(ctx context.Context) error {
	if !l.held || l.conn == nil {
		return nil
	}
	row := l.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.key)
	var rel sql.NullInt64
	_ = row.Scan(&rel) // do not fail on release
	l.held = false
	return l.conn.Close()
}

// withLock runs fn under the advisory lock on MySQL and directly on SQLite.
func (r *Runner) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.adapter.Dialect() != db.MySQL {
		return fn(ctx)
	}
	l := &advisoryLock{key: lockKey(r.table)}
	if err := l.acquire(ctx, r.adapter.DB(), r.lockTimeout); err != nil {
		return err
	}
	defer func() { _ = l.release(ctx) }()
	return fn(ctx)
}
