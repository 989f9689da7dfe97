package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// Migrate creates the leads table. SQLite tracks the schema in
// PRAGMA user_version; postgres relies on IF NOT EXISTS.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	switch d {
	case DialectSQLite:
		return migrateSQLite(ctx, db)
	case DialectPostgres:
		return migratePostgres(ctx, db)
	}
	return fmt.Errorf("unknown sql dialect %q", d)
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS leads (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  owner_handle TEXT NOT NULL,
  project_name TEXT NOT NULL,
  project_url TEXT NOT NULL DEFAULT '',
  project_description TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  last_activity TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'new',
  email_sent INTEGER NOT NULL DEFAULT 0,
  email_sent_at TEXT NOT NULL DEFAULT '',
  email_approved INTEGER NOT NULL DEFAULT 0,
  email_pending_approval INTEGER NOT NULL DEFAULT 0,
  ai_score REAL,
  ai_recommendation TEXT NOT NULL DEFAULT '',
  ai_analysis TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_owner_project
ON leads(owner_handle, project_name);
`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_leads_status
ON leads(status);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func migratePostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS leads (
  seq BIGSERIAL PRIMARY KEY,
  id TEXT NOT NULL UNIQUE,
  owner_handle TEXT NOT NULL,
  project_name TEXT NOT NULL,
  project_url TEXT NOT NULL DEFAULT '',
  project_description TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  last_activity TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'new',
  email_sent BOOLEAN NOT NULL DEFAULT FALSE,
  email_sent_at TEXT NOT NULL DEFAULT '',
  email_approved BOOLEAN NOT NULL DEFAULT FALSE,
  email_pending_approval BOOLEAN NOT NULL DEFAULT FALSE,
  ai_score DOUBLE PRECISION,
  ai_recommendation TEXT NOT NULL DEFAULT '',
  ai_analysis TEXT NOT NULL DEFAULT ''
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_owner_project ON leads(owner_handle, project_name);`,
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
