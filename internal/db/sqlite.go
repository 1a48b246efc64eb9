package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

func openSQLite(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// In-memory databases exist per connection; keep the pool at one so every
	// caller sees the same database.
	if strings.Contains(dsn, ":memory:") {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(4)
	}
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return conn, nil
}
