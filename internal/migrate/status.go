package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/tracewire/tracewire/internal/db"
	"github.com/tracewire/tracewire/internal/schema"
)

// StatusEntry is one catalog definition joined with its bookkeeping record.
type StatusEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"applied_at,omitzero"`
}

// Status projects the static catalog over the dynamic record table, in
// catalog order. It never mutates state: a missing bookkeeping table means
// everything is pending, not an error.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	records := map[string]time.Time{}
	probe := schema.New(r.adapter, r.adapter.Dialect())
	ok, err := probe.TableExists(ctx, r.table)
	if err != nil {
		return nil, err
	}
	if ok {
		records, err = r.appliedTimes(ctx)
		if err != nil {
			return nil, err
		}
	}
	out := make([]StatusEntry, 0, len(r.catalog))
	for _, def := range r.catalog {
		entry := StatusEntry{ID: def.ID, Name: def.Name}
		if at, applied := records[def.ID]; applied {
			entry.Applied = true
			entry.AppliedAt = at
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *Runner) appliedTimes(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.adapter.Query(ctx, fmt.Sprintf("SELECT id, applied_at FROM %s", r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]time.Time{}
	for rows.Next() {
		var id string
		var at time.Time
		// MySQL hands back time.Time with parseTime on; SQLite stores the
		// CURRENT_TIMESTAMP default as text.
		if r.adapter.Dialect() == db.MySQL {
			if err := rows.Scan(&id, &at); err != nil {
				return nil, err
			}
		} else {
			var raw string
			if err := rows.Scan(&id, &raw); err != nil {
				return nil, err
			}
			at, err = parseSQLiteTime(raw)
			if err != nil {
				return nil, fmt.Errorf("parse applied_at for %s: %w", id, err)
			}
		}
		out[id] = at
	}
	return out, rows.Err()
}

func parseSQLiteTime(raw string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05", // CURRENT_TIMESTAMP default
		time.RFC3339Nano,
		time.RFC3339,
	}
	var err error
	for _, layout := range layouts {
		var at time.Time
		if at, err = time.Parse(layout, raw); err == nil {
			return at, nil
		}
	}
	return time.Time{}, err
}
