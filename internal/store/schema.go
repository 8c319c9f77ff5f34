package store

import (
	"context"
	"fmt"
)

const Schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL UNIQUE,
	file_fingerprint TEXT,
	last_checked_at DATETIME,
	status TEXT NOT NULL,

	-- Probe metadata
	duration_seconds REAL NOT NULL DEFAULT 0,
	sample_rate INTEGER NOT NULL DEFAULT 0,
	channels INTEGER NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT '',
	file_size_bytes INTEGER NOT NULL DEFAULT 0,

	-- Tags
	title TEXT NOT NULL DEFAULT '',
	artist TEXT NOT NULL DEFAULT '',
	has_cover_art BOOLEAN NOT NULL DEFAULT 0,

	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recordings_fingerprint ON recordings(file_fingerprint);
CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status);

CREATE TABLE IF NOT EXISTS sync_runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	directory TEXT NOT NULL,
	discovered INTEGER NOT NULL DEFAULT 0,
	new_count INTEGER NOT NULL DEFAULT 0,
	updated_count INTEGER NOT NULL DEFAULT 0,
	missing_count INTEGER NOT NULL DEFAULT 0,
	ambiguous_count INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs(started_at);

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

type migration struct {
	version     int
	description string
	stmt        string
}

// migrations run once each, in order, after Schema. Schema always describes
// the latest layout, so statements here must tolerate a fresh database.
var migrations = []migration{
	{version: 1, description: "initial recordings and sync_runs tables"},
}

func (db *DB) migrate(ctx context.Context) error {
	return db.RunInTx(ctx, func(txDB *DB) error {
		var current int
		if err := txDB.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		for _, m := range migrations {
			if m.version <= current {
				continue
			}
			if m.stmt != "" {
				if _, err := txDB.ExecContext(ctx, m.stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
				}
			}
			if _, err := txDB.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`,
				m.version, m.description); err != nil {
				return fmt.Errorf("record migration %d: %w", m.version, err)
			}
		}
		return nil
	})
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.GetContext(ctx, &v, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	return v, err
}
