package db

import (
	"database/sql"
	"fmt"
)

// All contains the ordered list of migrations to apply.
var All = []string{
	`CREATE TABLE runs (
		id          TEXT PRIMARY KEY,
		started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
		documents   INTEGER NOT NULL,
		rules       INTEGER NOT NULL,
		skipped     INTEGER NOT NULL,
		status      TEXT NOT NULL
	)`,
	`CREATE TABLE rules (
		id            TEXT PRIMARY KEY,
		version       INTEGER NOT NULL DEFAULT 1,
		tenant_id     TEXT NOT NULL,
		category      TEXT NOT NULL,
		priority      INTEGER NOT NULL,
		severity      INTEGER NOT NULL,
		cooldown_days INTEGER NOT NULL,
		max_per_day   INTEGER NOT NULL,
		enabled       BOOLEAN NOT NULL,
		tags_json     TEXT NOT NULL,
		logic_json    TEXT NOT NULL,
		locale        TEXT NOT NULL,
		content_json  TEXT NOT NULL,
		document      TEXT NOT NULL,
		line          INTEGER NOT NULL,
		run_id        TEXT NOT NULL REFERENCES runs(id),
		created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
		updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE rule_messages (
		id       INTEGER PRIMARY KEY,
		rule_id  TEXT NOT NULL REFERENCES rules(id),
		position INTEGER NOT NULL,
		text     TEXT NOT NULL,
		weight   INTEGER NOT NULL,
		active   BOOLEAN NOT NULL
	)`,
	`CREATE TABLE diagnostics (
		id       INTEGER PRIMARY KEY,
		run_id   TEXT NOT NULL REFERENCES runs(id),
		document TEXT NOT NULL,
		line     INTEGER NOT NULL,
		rule_id  TEXT NOT NULL,
		kind     TEXT NOT NULL,
		severity TEXT NOT NULL,
		message  TEXT NOT NULL
	)`,
	`CREATE INDEX idx_diagnostics_run ON diagnostics(run_id)`,
}

// Migrate applies pending migrations, one transaction each.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return fmt.Errorf("checking schema_version: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return fmt.Errorf("initializing schema version: %w", err)
		}
	}

	var current int
	if err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(All); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(All[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}

		if _, err := tx.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("updating schema version to %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", i+1, err)
		}
	}

	return nil
}
