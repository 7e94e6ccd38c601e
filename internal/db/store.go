package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/chriserin/rulec/internal/export"
	"github.com/chriserin/rulec/internal/parser"
)

// ErrRuleNotFound is returned by GetRule for an unknown id.
var ErrRuleNotFound = errors.New("rule not found")

// StoredRule is an exported record with its source position.
type StoredRule struct {
	Record   export.Record
	Document string
	Line     int
	Version  int
	RunID    string
}

// Run is one compile to persist.
type Run struct {
	Documents   int
	Skipped     int
	Status      parser.Status
	Rules       []StoredRule
	Diagnostics []parser.Diagnostic
}

// Change is how a rule differs from what was stored before a run.
type Change string

const (
	ChangeNew       Change = "new"
	ChangeUpdated   Change = "upd"
	ChangeUnchanged Change = "trk"
	ChangeDeleted   Change = "del"
)

// RuleChange pairs a rule id with its Change.
type RuleChange struct {
	ID      string
	Change  Change
	Version int
}

// SaveRun stores a run, its diagnostics and its rules in one transaction. A
// rule's version is bumped when its exported content changed. Rules the run
// no longer produces are removed and reported as ChangeDeleted.
func SaveRun(sqlDB *sql.DB, run Run) (string, []RuleChange, error) {
	runID := uuid.NewString()

	tx, err := sqlDB.Begin()
	if err != nil {
		return "", nil, fmt.Errorf("beginning run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, documents, rules, skipped, status) VALUES (?, ?, ?, ?, ?)`,
		runID, run.Documents, len(run.Rules), run.Skipped, run.Status.String())
	if err != nil {
		return "", nil, fmt.Errorf("inserting run: %w", err)
	}

	for _, d := range run.Diagnostics {
		_, err = tx.Exec(`INSERT INTO diagnostics (run_id, document, line, rule_id, kind, severity, message) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, d.Document, d.Line, d.RuleID, string(d.Kind), string(d.Severity), d.Message)
		if err != nil {
			return "", nil, fmt.Errorf("inserting diagnostic: %w", err)
		}
	}

	changes := make([]RuleChange, 0, len(run.Rules))
	for _, r := range run.Rules {
		change, err := saveRule(tx, runID, r)
		if err != nil {
			return "", nil, err
		}
		changes = append(changes, change)
	}

	removed, err := removeStale(tx, runID)
	if err != nil {
		return "", nil, err
	}
	changes = append(changes, removed...)

	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("committing run: %w", err)
	}
	return runID, changes, nil
}

func saveRule(tx *sql.Tx, runID string, r StoredRule) (RuleChange, error) {
	rec := r.Record
	content, err := export.MarshalCompact(rec)
	if err != nil {
		return RuleChange{}, fmt.Errorf("encoding rule %s: %w", rec.ID, err)
	}
	tags, err := export.MarshalCompact(rec.Tags)
	if err != nil {
		return RuleChange{}, fmt.Errorf("encoding tags of %s: %w", rec.ID, err)
	}
	logic, err := export.MarshalCompact(rec.Logic)
	if err != nil {
		return RuleChange{}, fmt.Errorf("encoding logic of %s: %w", rec.ID, err)
	}

	var version int
	var previous string
	err = tx.QueryRow(`SELECT version, content_json FROM rules WHERE id = ?`, rec.ID).Scan(&version, &previous)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		version = 1
		_, err = tx.Exec(`INSERT INTO rules (id, version, tenant_id, category, priority, severity, cooldown_days, max_per_day,
			enabled, tags_json, logic_json, locale, content_json, document, line, run_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, version, rec.TenantID, rec.Category, rec.Priority, rec.Severity, rec.CooldownDays, rec.MaxPerDay,
			rec.Enabled, string(tags), string(logic), rec.Locale, string(content), r.Document, r.Line, runID)
		if err != nil {
			return RuleChange{}, fmt.Errorf("inserting rule %s: %w", rec.ID, err)
		}
		if err := replaceMessages(tx, rec); err != nil {
			return RuleChange{}, err
		}
		return RuleChange{ID: rec.ID, Change: ChangeNew, Version: version}, nil
	case err != nil:
		return RuleChange{}, fmt.Errorf("querying rule %s: %w", rec.ID, err)
	}

	change := ChangeUnchanged
	if previous != string(content) {
		version++
		change = ChangeUpdated
	}
	_, err = tx.Exec(`UPDATE rules SET version = ?, tenant_id = ?, category = ?, priority = ?, severity = ?, cooldown_days = ?,
		max_per_day = ?, enabled = ?, tags_json = ?, logic_json = ?, locale = ?, content_json = ?, document = ?, line = ?,
		run_id = ?, updated_at = CASE WHEN ? THEN datetime('now') ELSE updated_at END
		WHERE id = ?`,
		version, rec.TenantID, rec.Category, rec.Priority, rec.Severity, rec.CooldownDays,
		rec.MaxPerDay, rec.Enabled, string(tags), string(logic), rec.Locale, string(content), r.Document, r.Line,
		runID, change == ChangeUpdated, rec.ID)
	if err != nil {
		return RuleChange{}, fmt.Errorf("updating rule %s: %w", rec.ID, err)
	}
	if change == ChangeUpdated {
		if err := replaceMessages(tx, rec); err != nil {
			return RuleChange{}, err
		}
	}
	return RuleChange{ID: rec.ID, Change: change, Version: version}, nil
}

// removeStale deletes the rules not written by runID, with their messages.
func removeStale(tx *sql.Tx, runID string) ([]RuleChange, error) {
	rows, err := tx.Query(`SELECT id, version FROM rules WHERE run_id != ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying stale rules: %w", err)
	}
	var stale []RuleChange
	for rows.Next() {
		rc := RuleChange{Change: ChangeDeleted}
		if err := rows.Scan(&rc.ID, &rc.Version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning stale rule: %w", err)
		}
		stale = append(stale, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading stale rules: %w", err)
	}

	for _, rc := range stale {
		if _, err := tx.Exec(`DELETE FROM rule_messages WHERE rule_id = ?`, rc.ID); err != nil {
			return nil, fmt.Errorf("deleting messages of %s: %w", rc.ID, err)
		}
		if _, err := tx.Exec(`DELETE FROM rules WHERE id = ?`, rc.ID); err != nil {
			return nil, fmt.Errorf("deleting rule %s: %w", rc.ID, err)
		}
	}
	return stale, nil
}

func replaceMessages(tx *sql.Tx, rec export.Record) error {
	if _, err := tx.Exec(`DELETE FROM rule_messages WHERE rule_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clearing messages of %s: %w", rec.ID, err)
	}
	for i, m := range rec.Messages {
		_, err := tx.Exec(`INSERT INTO rule_messages (rule_id, position, text, weight, active) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, i, m.Text, m.Weight, m.Active)
		if err != nil {
			return fmt.Errorf("inserting message of %s: %w", rec.ID, err)
		}
	}
	return nil
}

// RuleRow is one line of ListRules.
type RuleRow struct {
	ID         string
	Version    int
	Category   string
	Priority   int
	Enabled    bool
	Conditions int
	Document   string
}

// ListRules returns stored rules ordered by id, optionally filtered by category.
func ListRules(sqlDB *sql.DB, category string) ([]RuleRow, error) {
	rows, err := sqlDB.Query(`
		SELECT id, version, category, priority, enabled, logic_json, document
		FROM rules
		WHERE ? = '' OR category = ?
		ORDER BY id
	`, category, category)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var out []RuleRow
	for rows.Next() {
		var r RuleRow
		var logicJSON string
		if err := rows.Scan(&r.ID, &r.Version, &r.Category, &r.Priority, &r.Enabled, &logicJSON, &r.Document); err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		var logic parser.Logic
		if err := json.Unmarshal([]byte(logicJSON), &logic); err != nil {
			return nil, fmt.Errorf("decoding logic of %s: %w", r.ID, err)
		}
		r.Conditions = len(logic.All)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return out, nil
}

// GetRule returns one stored rule.
func GetRule(sqlDB *sql.DB, id string) (*StoredRule, error) {
	var sr StoredRule
	var content string
	err := sqlDB.QueryRow(`SELECT content_json, document, line, version, run_id FROM rules WHERE id = ?`, id).
		Scan(&content, &sr.Document, &sr.Line, &sr.Version, &sr.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying rule %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(content), &sr.Record); err != nil {
		return nil, fmt.Errorf("decoding rule %s: %w", id, err)
	}
	return &sr, nil
}

// RunDiagnostics returns the diagnostics recorded for a run, in input order.
func RunDiagnostics(sqlDB *sql.DB, runID string) ([]parser.Diagnostic, error) {
	rows, err := sqlDB.Query(`
		SELECT document, line, rule_id, kind, severity, message
		FROM diagnostics WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying diagnostics: %w", err)
	}
	defer rows.Close()

	var out []parser.Diagnostic
	for rows.Next() {
		var d parser.Diagnostic
		var kind, severity string
		if err := rows.Scan(&d.Document, &d.Line, &d.RuleID, &kind, &severity, &d.Message); err != nil {
			return nil, fmt.Errorf("scanning diagnostic: %w", err)
		}
		d.Kind = parser.Kind(kind)
		d.Severity = parser.Severity(severity)
		out = append(out, d)
	}
	return out, rows.Err()
}

// LatestRunID returns the id of the most recent run, or "" when none exists.
func LatestRunID(sqlDB *sql.DB) (string, error) {
	var id string
	err := sqlDB.QueryRow(`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying latest run: %w", err)
	}
	return id, nil
}
