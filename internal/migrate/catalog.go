package migrate

import (
	"context"

	"github.com/google/uuid"

	"github.com/tracewire/tracewire/internal/db"
)

// Catalog returns the full, ordered migration catalog for the TraceWire
// schema. Append only: ids are never renumbered, reordered, or edited after
// shipping. Catalog order is execution order.
func Catalog() []Definition {
	return []Definition{
		{
			ID:         "0001",
			Name:       "create_tenants",
			DownPolicy: DownReversible,
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.CreateTable(ctx, "tenants", db.ByDialect{
					SQLite: `CREATE TABLE tenants (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uid TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL UNIQUE,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
					MySQL: `CREATE TABLE tenants (
  id BIGINT PRIMARY KEY AUTO_INCREMENT,
  uid VARCHAR(36) NOT NULL UNIQUE,
  name VARCHAR(255) NOT NULL UNIQUE,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
				})
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				return step.Run(ctx, db.Same(`DROP TABLE IF EXISTS tenants`))
			},
		},
		{
			ID:         "0002",
			Name:       "create_users",
			DownPolicy: DownReversible,
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.CreateTable(ctx, "users", db.ByDialect{
					SQLite: `CREATE TABLE users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenant_id INTEGER NOT NULL REFERENCES tenants(id),
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'viewer',
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (tenant_id, email)
)`,
					MySQL: `CREATE TABLE users (
  id BIGINT PRIMARY KEY AUTO_INCREMENT,
  tenant_id BIGINT NOT NULL,
  email VARCHAR(255) NOT NULL,
  password_hash VARCHAR(255) NOT NULL,
  role VARCHAR(32) NOT NULL DEFAULT 'viewer',
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY uniq_users_tenant_email (tenant_id, email),
  CONSTRAINT fk_users_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
				})
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				return step.Run(ctx, db.Same(`DROP TABLE IF EXISTS users`))
			},
		},
		{
			ID:         "0003",
			Name:       "create_sites",
			DownPolicy: DownReversible,
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.CreateTable(ctx, "sites", db.ByDialect{
					SQLite: `CREATE TABLE sites (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenant_id INTEGER NOT NULL REFERENCES tenants(id),
  name TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (tenant_id, name)
)`,
					MySQL: `CREATE TABLE sites (
  id BIGINT PRIMARY KEY AUTO_INCREMENT,
  tenant_id BIGINT NOT NULL,
  name VARCHAR(255) NOT NULL,
  location VARCHAR(255) NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY uniq_sites_tenant_name (tenant_id, name),
  CONSTRAINT fk_sites_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
				})
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				return step.Run(ctx, db.Same(`DROP TABLE IF EXISTS sites`))
			},
		},
		{
			ID:         "0004",
			Name:       "create_labels",
			DownPolicy: DownReversible,
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.CreateTable(ctx, "labels", db.ByDialect{
					SQLite: `CREATE TABLE labels (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tenant_id INTEGER NOT NULL REFERENCES tenants(id),
  site_id INTEGER NOT NULL REFERENCES sites(id),
  code TEXT NOT NULL,
  cable_type TEXT NOT NULL DEFAULT 'cat6',
  from_port TEXT NOT NULL DEFAULT '',
  to_port TEXT NOT NULL DEFAULT '',
  legacy_code TEXT,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE (tenant_id, code)
)`,
					MySQL: `CREATE TABLE labels (
  id BIGINT PRIMARY KEY AUTO_INCREMENT,
  tenant_id BIGINT NOT NULL,
  site_id BIGINT NOT NULL,
  code VARCHAR(64) NOT NULL,
  cable_type VARCHAR(32) NOT NULL DEFAULT 'cat6',
  from_port VARCHAR(64) NOT NULL DEFAULT '',
  to_port VARCHAR(64) NOT NULL DEFAULT '',
  legacy_code VARCHAR(64) NULL,
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY uniq_labels_tenant_code (tenant_id, code),
  CONSTRAINT fk_labels_tenant FOREIGN KEY (tenant_id) REFERENCES tenants(id),
  CONSTRAINT fk_labels_site FOREIGN KEY (site_id) REFERENCES sites(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
				})
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				return step.Run(ctx, db.Same(`DROP TABLE IF EXISTS labels`))
			},
		},
		{
			ID:         "0005",
			Name:       "add_label_color",
			DownPolicy: DownBestEffort, // SQLite cannot drop the column on older engines
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.AddColumn(ctx, "labels", "color", db.ByDialect{
					SQLite: `ALTER TABLE labels ADD COLUMN color TEXT NOT NULL DEFAULT 'white'`,
					MySQL:  `ALTER TABLE labels ADD COLUMN color VARCHAR(32) NOT NULL DEFAULT 'white'`,
				})
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				_, err := step.DropColumn(ctx, "labels", "color")
				return err
			},
		},
		{
			ID:         "0006",
			Name:       "index_labels_site",
			DownPolicy: DownReversible,
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.CreateIndex(ctx, "idx_labels_site_id",
					db.Same(`CREATE INDEX idx_labels_site_id ON labels (site_id)`))
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				_, err := step.DropIndex(ctx, "idx_labels_site_id", db.ByDialect{
					SQLite: `DROP INDEX IF EXISTS idx_labels_site_id`,
					MySQL:  `DROP INDEX idx_labels_site_id ON labels`,
				})
				return err
			},
		},
		{
			ID:         "0007",
			Name:       "label_status_check",
			DownPolicy: DownBestEffort,
			Up: func(ctx context.Context, step *Step) error {
				// SQLite takes the CHECK inline with the column; MySQL adds it
				// as a named constraint afterwards. Older MySQL rejects ADD
				// CONSTRAINT ... CHECK, and the constraint is defense in
				// depth, so that statement is tolerated to fail.
				if _, err := step.AddColumn(ctx, "labels", "status", db.ByDialect{
					SQLite: `ALTER TABLE labels ADD COLUMN status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'retired'))`,
					MySQL:  `ALTER TABLE labels ADD COLUMN status VARCHAR(16) NOT NULL DEFAULT 'active'`,
				}); err != nil {
					return err
				}
				step.Optional(ctx, db.ByDialect{
					MySQL: `ALTER TABLE labels ADD CONSTRAINT chk_labels_status CHECK (status IN ('active', 'retired'))`,
				})
				return nil
			},
			Down: func(ctx context.Context, step *Step) error {
				step.Optional(ctx, db.ByDialect{
					MySQL: `ALTER TABLE labels DROP CHECK chk_labels_status`,
				})
				_, err := step.DropColumn(ctx, "labels", "status")
				return err
			},
		},
		{
			ID:         "0008",
			Name:       "seed_default_tenant",
			DownPolicy: DownReversible,
			Up: func(ctx context.Context, step *Step) error {
				var n int64
				err := step.Exec.QueryRow(ctx,
					`SELECT COUNT(*) FROM tenants WHERE name = ?`, "default").Scan(&n)
				if err != nil {
					return err
				}
				if n > 0 {
					return nil
				}
				return step.Run(ctx,
					db.Same(`INSERT INTO tenants (uid, name) VALUES (?, ?)`),
					uuid.NewString(), "default")
			},
			Down: func(ctx context.Context, step *Step) error {
				return step.Run(ctx, db.Same(`DELETE FROM tenants WHERE name = ?`), "default")
			},
		},
		{
			ID:         "0009",
			Name:       "normalize_label_codes",
			DownPolicy: DownUnsupported, // original casing is lost
			Up: func(ctx context.Context, step *Step) error {
				return step.Run(ctx, db.Same(`UPDATE labels SET code = UPPER(TRIM(code))`))
			},
		},
		{
			ID:         "0010",
			Name:       "drop_label_legacy_code",
			DownPolicy: DownBestEffort, // re-adds the column empty; the data is gone
			Up: func(ctx context.Context, step *Step) error {
				_, err := step.DropColumn(ctx, "labels", "legacy_code")
				return err
			},
			Down: func(ctx context.Context, step *Step) error {
				_, err := step.AddColumn(ctx, "labels", "legacy_code", db.ByDialect{
					SQLite: `ALTER TABLE labels ADD COLUMN legacy_code TEXT`,
					MySQL:  `ALTER TABLE labels ADD COLUMN legacy_code VARCHAR(64) NULL`,
				})
				return err
			},
		},
	}
}
