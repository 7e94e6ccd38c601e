package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chriserin/rulec/internal/db"
	"github.com/chriserin/rulec/internal/parser"
	"github.com/chriserin/rulec/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored rule by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunShow(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// RunShow prints a stored rule and the diagnostics the latest run reported
// for it.
func RunShow(w io.Writer, id string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	sr, err := db.GetRule(sqlDB, id)
	if err != nil {
		return err
	}
	rec := sr.Record

	ui.ShowHeader(w, rec.ID, sr.Version, sr.Document, sr.Line)
	ui.ShowField(w, "tenant", rec.TenantID)
	ui.ShowField(w, "category", rec.Category)
	ui.ShowField(w, "priority", strconv.Itoa(rec.Priority))
	ui.ShowField(w, "severity", strconv.Itoa(rec.Severity))
	ui.ShowField(w, "cooldown days", strconv.Itoa(rec.CooldownDays))
	ui.ShowField(w, "max per day", strconv.Itoa(rec.MaxPerDay))
	ui.ShowField(w, "enabled", strconv.FormatBool(rec.Enabled))
	ui.ShowField(w, "tags", ui.Join(rec.Tags))
	ui.ShowField(w, "locale", rec.Locale)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "when all of:")
	if len(rec.Logic.All) == 0 {
		fmt.Fprintln(w, "  (always)")
	}
	for _, c := range rec.Logic.All {
		ui.ShowCondition(w, c)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "messages:")
	for _, m := range rec.Messages {
		ui.ShowMessage(w, m.Text, m.Weight, m.Active)
	}

	return showDiagnostics(w, sqlDB, rec.ID)
}

// showDiagnostics prints what the latest run reported about the rule.
func showDiagnostics(w io.Writer, sqlDB *sql.DB, id string) error {
	runID, err := db.LatestRunID(sqlDB)
	if err != nil || runID == "" {
		return err
	}
	diags, err := db.RunDiagnostics(sqlDB, runID)
	if err != nil {
		return err
	}

	var own []parser.Diagnostic
	for _, d := range diags {
		if d.RuleID == id {
			own = append(own, d)
		}
	}
	if len(own) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "diagnostics:")
	for _, d := range own {
		ui.DiagnosticLine(w, d)
	}
	return nil
}
