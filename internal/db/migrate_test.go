package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_CreatesSchemaVersionTable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "schema_version", name)
}

func TestMigrate_AppliesRuleSchema(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	var version int
	require.NoError(t, db.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, len(All), version)

	for _, table := range []string{"runs", "rules", "rule_messages", "diagnostics"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}

// withMigrations swaps All for the duration of a test.
func withMigrations(t *testing.T, migrations ...string) {
	t.Helper()
	orig := All
	All = migrations
	t.Cleanup(func() { All = orig })
}

func columns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?) ORDER BY cid`, table)
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		out = append(out, name)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestMigrate_RunsPendingMigrations(t *testing.T) {
	withMigrations(t,
		`CREATE TABLE runs (id TEXT PRIMARY KEY)`,
		`CREATE TABLE rules (id TEXT PRIMARY KEY, run_id TEXT NOT NULL REFERENCES runs(id))`,
	)
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	// A later release adds a column; only that step runs against the
	// existing schema.
	All = append(All, `ALTER TABLE rules ADD COLUMN version INTEGER NOT NULL DEFAULT 1`)
	require.NoError(t, Migrate(db))

	var version int
	require.NoError(t, db.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, 3, version)
	assert.Equal(t, []string{"id", "run_id", "version"}, columns(t, db, "rules"))
}

func TestMigrate_SkipsAlreadyAppliedMigrations(t *testing.T) {
	withMigrations(t, `CREATE TABLE diagnostics (id INTEGER PRIMARY KEY, run_id TEXT NOT NULL, kind TEXT NOT NULL)`)

	db := openTestDB(t)
	require.NoError(t, Migrate(db))
	_, err := db.Exec(`INSERT INTO diagnostics (run_id, kind) VALUES ('run-1', 'MalformedLine')`)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	var version, count int
	require.NoError(t, db.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM diagnostics`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMigrate_RollsBackOnFailure(t *testing.T) {
	withMigrations(t,
		`CREATE TABLE runs (id TEXT PRIMARY KEY)`,
		`ALTER TABLE rule_messages ADD COLUMN locale TEXT`,
	)

	db := openTestDB(t)
	err := Migrate(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 2 failed")

	var version int
	require.NoError(t, db.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)
	assert.Equal(t, []string{"id"}, columns(t, db, "runs"))
}
