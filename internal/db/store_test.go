package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriserin/rulec/internal/export"
	"github.com/chriserin/rulec/internal/parser"
)

func openStore(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := Open(filepath.Join(t.TempDir(), "nested", "rulec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func storedRule(id, category string, threshold int64) StoredRule {
	rec := export.Record{
		ID:       id,
		TenantID: "default",
		Category: category,
		Priority: 50,
		Severity: 1,
		Enabled:  true,
		Tags:     []string{},
		Logic: parser.Logic{All: []parser.ConditionRecord{
			{Var: "latency", Agg: parser.AggCurrent, Op: parser.OpLess, Value: parser.IntValue(threshold)},
		}},
		Locale:   "es-ES",
		Messages: []export.Message{{Text: "Recomendación para " + id, Weight: 1, Active: true}},
	}
	return StoredRule{Record: rec, Document: "rules.yaml", Line: 1}
}

func TestSaveRun_NewRules(t *testing.T) {
	sqlDB := openStore(t)

	runID, changes, err := SaveRun(sqlDB, Run{
		Documents: 1,
		Rules:     []StoredRule{storedRule("R-1", "speed", 2500), storedRule("R-2", "sleep", 10)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, []RuleChange{
		{ID: "R-1", Change: ChangeNew, Version: 1},
		{ID: "R-2", Change: ChangeNew, Version: 1},
	}, changes)

	var count int
	require.NoError(t, sqlDB.QueryRow(`SELECT COUNT(*) FROM rule_messages`).Scan(&count))
	assert.Equal(t, 2, count)

	latest, err := LatestRunID(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, runID, latest)
}

func TestSaveRun_VersionBumpsOnlyOnChange(t *testing.T) {
	sqlDB := openStore(t)

	_, _, err := SaveRun(sqlDB, Run{Rules: []StoredRule{storedRule("R-1", "speed", 2500), storedRule("R-2", "speed", 1)}})
	require.NoError(t, err)

	_, changes, err := SaveRun(sqlDB, Run{Rules: []StoredRule{storedRule("R-1", "speed", 3000), storedRule("R-2", "speed", 1)}})
	require.NoError(t, err)
	assert.Equal(t, []RuleChange{
		{ID: "R-1", Change: ChangeUpdated, Version: 2},
		{ID: "R-2", Change: ChangeUnchanged, Version: 1},
	}, changes)

	got, err := GetRule(sqlDB, "R-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, parser.IntValue(3000), got.Record.Logic.All[0].Value)
}

func TestSaveRun_RemovesRulesNoLongerCompiled(t *testing.T) {
	sqlDB := openStore(t)

	_, _, err := SaveRun(sqlDB, Run{Rules: []StoredRule{
		storedRule("R-1", "speed", 2500),
		storedRule("R-2", "speed", 1),
		storedRule("R-3", "sleep", 8),
	}})
	require.NoError(t, err)
	_, _, err = SaveRun(sqlDB, Run{Rules: []StoredRule{storedRule("R-1", "speed", 2500), storedRule("R-2", "speed", 2)}})
	require.NoError(t, err)

	_, changes, err := SaveRun(sqlDB, Run{Rules: []StoredRule{storedRule("R-1", "speed", 2500)}})
	require.NoError(t, err)
	assert.Equal(t, []RuleChange{
		{ID: "R-1", Change: ChangeUnchanged, Version: 1},
		{ID: "R-2", Change: ChangeDeleted, Version: 2},
	}, changes)

	_, err = GetRule(sqlDB, "R-2")
	require.ErrorIs(t, err, ErrRuleNotFound)

	var messages int
	require.NoError(t, sqlDB.QueryRow(`SELECT COUNT(*) FROM rule_messages WHERE rule_id != 'R-1'`).Scan(&messages))
	assert.Zero(t, messages)

	rows, err := ListRules(sqlDB, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "R-1", rows[0].ID)
}

func TestGetRule_RoundTripsRecord(t *testing.T) {
	sqlDB := openStore(t)
	sr := storedRule("R-1", "speed", 2500)
	sr.Record.Logic.All = append(sr.Record.Logic.All, parser.ConditionRecord{
		Var: "ratio", Agg: parser.AggCurrent, Op: parser.OpGreaterEqual, Value: parser.FloatValue(1),
	})
	sr.Line = 7

	runID, _, err := SaveRun(sqlDB, Run{Rules: []StoredRule{sr}})
	require.NoError(t, err)

	got, err := GetRule(sqlDB, "R-1")
	require.NoError(t, err)
	assert.Equal(t, sr.Record, got.Record)
	assert.Equal(t, 7, got.Line)
	assert.Equal(t, "rules.yaml", got.Document)
	assert.Equal(t, runID, got.RunID)
}

func TestGetRule_NotFound(t *testing.T) {
	sqlDB := openStore(t)
	_, err := GetRule(sqlDB, "R-404")
	require.ErrorIs(t, err, ErrRuleNotFound)
}

func TestListRules_FiltersByCategory(t *testing.T) {
	sqlDB := openStore(t)
	_, _, err := SaveRun(sqlDB, Run{Rules: []StoredRule{
		storedRule("R-2", "sleep", 1),
		storedRule("R-1", "speed", 2),
		storedRule("R-3", "speed", 3),
	}})
	require.NoError(t, err)

	all, err := ListRules(sqlDB, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "R-1", all[0].ID)
	assert.Equal(t, 1, all[0].Conditions)

	speed, err := ListRules(sqlDB, "speed")
	require.NoError(t, err)
	require.Len(t, speed, 2)
	assert.Equal(t, "R-3", speed[1].ID)
}

func TestRunDiagnostics(t *testing.T) {
	sqlDB := openStore(t)
	diags := []parser.Diagnostic{
		{Kind: parser.KindMalformedLine, Severity: parser.SeverityError, Document: "a.yaml", Line: 3, RuleID: "R-1", Message: "expected 'key:'"},
		{Kind: parser.KindDuplicateRuleID, Severity: parser.SeverityWarning, Document: "b.yaml", Line: 1, RuleID: "R-1", Message: "replaces the definition at a.yaml:1"},
	}
	runID, _, err := SaveRun(sqlDB, Run{Status: parser.StatusAllSkipped, Diagnostics: diags})
	require.NoError(t, err)

	got, err := RunDiagnostics(sqlDB, runID)
	require.NoError(t, err)
	assert.Equal(t, diags, got)

	var status string
	require.NoError(t, sqlDB.QueryRow(`SELECT status FROM runs WHERE id = ?`, runID).Scan(&status))
	assert.Equal(t, "all rules skipped", status)
}

func TestLatestRunID_Empty(t *testing.T) {
	sqlDB := openStore(t)
	id, err := LatestRunID(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestOpen_EnablesWAL(t *testing.T) {
	sqlDB := openStore(t)
	var mode string
	require.NoError(t, sqlDB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
