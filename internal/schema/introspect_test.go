package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tracewire/tracewire/internal/db"
)

func openMemory(t *testing.T) *db.Adapter {
	t.Helper()
	a, err := db.Open(db.Config{Dialect: db.SQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestSQLiteProbes(t *testing.T) {
	ctx := context.Background()
	a := openMemory(t)
	for _, stmt := range []string{
		`CREATE TABLE panels (id INTEGER PRIMARY KEY, row_label TEXT)`,
		`CREATE INDEX idx_panels_row ON panels (row_label)`,
	} {
		if _, err := a.Execute(ctx, stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	in := New(a, db.SQLite)

	cases := []struct {
		name  string
		probe func() (bool, error)
		want  bool
	}{
		{"table present", func() (bool, error) { return in.TableExists(ctx, "panels") }, true},
		{"table missing", func() (bool, error) { return in.TableExists(ctx, "nope") }, false},
		{"column present", func() (bool, error) { return in.ColumnExists(ctx, "panels", "row_label") }, true},
		{"column missing", func() (bool, error) { return in.ColumnExists(ctx, "panels", "nope") }, false},
		{"column of missing table", func() (bool, error) { return in.ColumnExists(ctx, "nope", "id") }, false},
		{"index present", func() (bool, error) { return in.IndexExists(ctx, "idx_panels_row") }, true},
		{"index missing", func() (bool, error) { return in.IndexExists(ctx, "idx_nope") }, false},
	}
	for _, tc := range cases {
		got, err := tc.probe()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMySQLProbeQueries(t *testing.T) {
	ctx := context.Background()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()
	in := New(db.NewAdapter(conn, db.MySQL), db.MySQL)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM information_schema.tables`).
		WithArgs("labels").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	ok, err := in.TableExists(ctx, "labels")
	if err != nil || !ok {
		t.Fatalf("table probe: ok=%v err=%v", ok, err)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM information_schema.columns`).
		WithArgs("labels", "color").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	ok, err = in.ColumnExists(ctx, "labels", "color")
	if err != nil || ok {
		t.Fatalf("column probe: ok=%v err=%v", ok, err)
	}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM information_schema.statistics`).
		WithArgs("idx_labels_site_id").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	ok, err = in.IndexExists(ctx, "idx_labels_site_id")
	if err != nil || !ok {
		t.Fatalf("index probe: ok=%v err=%v", ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
