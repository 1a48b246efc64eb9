package db

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func openMySQL(dsn string) (*sql.DB, error) {
	conn, err := sql.Open("mysql", withMySQLParams(dsn))
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)
	return conn, nil
}

// withMySQLParams ensures parseTime is on so TIMESTAMP columns scan into
// time.Time, and multiStatements so definitions may issue compound SQL.
func withMySQLParams(dsn string) string {
	lower := strings.ToLower(dsn)
	for _, p := range []string{"parseTime=true", "multiStatements=true"} {
		key := strings.ToLower(strings.SplitN(p, "=", 2)[0]) + "="
		if strings.Contains(lower, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + p
		} else {
			dsn += "?" + p
		}
	}
	return dsn
}
