package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewire/tracewire/internal/schema"
)

func TestCatalogIsWellFormed(t *testing.T) {
	require.NoError(t, VerifyCatalog(Catalog()))
}

func TestVerifyCatalogRejections(t *testing.T) {
	up := func(ctx context.Context, step *Step) error { return nil }
	down := up

	cases := []struct {
		name    string
		catalog []Definition
	}{
		{"empty id", []Definition{{Name: "x", Up: up, Down: down}}},
		{"duplicate id", []Definition{
			{ID: "0001", Up: up, Down: down},
			{ID: "0001", Up: up, Down: down},
		}},
		{"out of order", []Definition{
			{ID: "0002", Up: up, Down: down},
			{ID: "0001", Up: up, Down: down},
		}},
		{"missing up", []Definition{{ID: "0001", Down: down}}},
		{"missing down without unsupported tag", []Definition{
			{ID: "0001", Up: up, DownPolicy: DownBestEffort},
		}},
	}
	for _, tc := range cases {
		require.Error(t, VerifyCatalog(tc.catalog), tc.name)
	}

	// A missing down is fine when the definition owns up to it.
	require.NoError(t, VerifyCatalog([]Definition{
		{ID: "0001", Up: up, DownPolicy: DownUnsupported},
	}))
}

// A database that already reflects a later definition's side effects must not
// fail the run: guarded definitions skip what is already present.
func TestGapSafety(t *testing.T) {
	ctx := context.Background()
	a := openMemory(t)
	full := Catalog()

	prefix := newTestRunner(t, a, full[:4])
	require.NoError(t, prefix.Run(ctx))

	// Someone added the color column by hand, ahead of 0005.
	_, err := a.Execute(ctx, `ALTER TABLE labels ADD COLUMN color TEXT NOT NULL DEFAULT 'white'`)
	require.NoError(t, err)

	r := newTestRunner(t, a, full)
	require.NoError(t, r.Run(ctx), "re-running must not fail on column already exists")

	entries, err := r.Status(ctx)
	require.NoError(t, err)
	for _, e := range entries {
		require.True(t, e.Applied, "entry %s", e.ID)
	}
}

func TestCatalogNormalizesSeedData(t *testing.T) {
	ctx := context.Background()
	a := openMemory(t)
	full := Catalog()

	// Apply everything up to the backfill, plant a messy row, then continue.
	require.NoError(t, newTestRunner(t, a, full[:8]).Run(ctx))

	var tenantID int64
	require.NoError(t, a.QueryRow(ctx, `SELECT id FROM tenants WHERE name = ?`, "default").Scan(&tenantID))
	_, err := a.Execute(ctx, `INSERT INTO sites (tenant_id, name) VALUES (?, ?)`, tenantID, "hq")
	require.NoError(t, err)
	var siteID int64
	require.NoError(t, a.QueryRow(ctx, `SELECT id FROM sites WHERE name = ?`, "hq").Scan(&siteID))
	_, err = a.Execute(ctx,
		`INSERT INTO labels (tenant_id, site_id, code) VALUES (?, ?, ?)`,
		tenantID, siteID, " rack1-a01 ")
	require.NoError(t, err)

	require.NoError(t, newTestRunner(t, a, full).Run(ctx))

	var code string
	require.NoError(t, a.QueryRow(ctx, `SELECT code FROM labels WHERE site_id = ?`, siteID).Scan(&code))
	require.Equal(t, "RACK1-A01", code, "0009 normalizes existing codes")
}

func TestSeedDefaultTenantIsGuarded(t *testing.T) {
	ctx := context.Background()
	a := openMemory(t)
	full := Catalog()
	require.NoError(t, newTestRunner(t, a, full).Run(ctx))

	var n int64
	require.NoError(t, a.QueryRow(ctx, `SELECT COUNT(*) FROM tenants WHERE name = ?`, "default").Scan(&n))
	require.EqualValues(t, 1, n)

	// Roll the seed back and forward again; still exactly one row.
	require.NoError(t, newTestRunner(t, a, full).Rollback(ctx, "0008"))
	require.NoError(t, a.QueryRow(ctx, `SELECT COUNT(*) FROM tenants WHERE name = ?`, "default").Scan(&n))
	require.EqualValues(t, 0, n)

	require.NoError(t, newTestRunner(t, a, full).Run(ctx))
	require.NoError(t, a.QueryRow(ctx, `SELECT COUNT(*) FROM tenants WHERE name = ?`, "default").Scan(&n))
	require.EqualValues(t, 1, n)
}

func TestCatalogRollbackChain(t *testing.T) {
	ctx := context.Background()
	a := openMemory(t)
	r := newTestRunner(t, a, Catalog())
	require.NoError(t, r.Run(ctx))

	// Reversible tail of the catalog, newest first, skipping the
	// irreversible backfill.
	for _, id := range []string{"0010", "0008", "0007", "0006", "0005"} {
		require.NoError(t, r.Rollback(ctx, id), "rollback %s", id)
	}

	in := schema.New(a, a.Dialect())
	ok, err := in.ColumnExists(ctx, "labels", "color")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = in.IndexExists(ctx, "idx_labels_site_id")
	require.NoError(t, err)
	require.False(t, ok)

	entries, err := r.Status(ctx)
	require.NoError(t, err)
	applied := map[string]bool{}
	for _, e := range entries {
		applied[e.ID] = e.Applied
	}
	require.True(t, applied["0004"])
	require.True(t, applied["0009"], "irreversible definition stays recorded")
	require.False(t, applied["0005"])
}

func TestCatalogOnMySQLFragments(t *testing.T) {
	// Every dual-SQL fragment must be present for both dialects; an empty
	// MySQL side would silently turn a required statement into a no-op.
	for _, def := range Catalog() {
		require.NotEmpty(t, def.ID)
		require.NotEmpty(t, def.Name)
		if def.DownPolicy == DownUnsupported {
			require.Nil(t, def.Down)
		} else {
			require.NotNil(t, def.Down, def.ID)
		}
	}
}
