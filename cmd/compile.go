package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chriserin/rulec/internal/config"
	"github.com/chriserin/rulec/internal/db"
	"github.com/chriserin/rulec/internal/export"
	"github.com/chriserin/rulec/internal/parser"
	"github.com/chriserin/rulec/internal/source"
	"github.com/chriserin/rulec/internal/ui"
)

var compileCmd = &cobra.Command{
	Use:   "compile [files...]",
	Short: "Compile rule documents, write JSON and CSV, and store the rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunCompile(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
	},
}

func init() {
	rootCmd.AddCommand(compileCmd)
}

// ErrNothingCompiled is returned when the input held rule candidates but
// every one of them was skipped, or held none at all.
var ErrNothingCompiled = errors.New("no rules compiled")

// build is one pass over the rule documents.
type build struct {
	documents   int
	result      *parser.Result
	records     []export.Record
	diagnostics []parser.Diagnostic
}

// compileRules loads the documents named by files, or the configured sources
// when files is empty, and builds their export records.
func compileRules(ctx context.Context, cfg *config.Config, logger *slog.Logger, files []string) (*build, error) {
	patterns := files
	if len(patterns) == 0 {
		patterns = cfg.Sources
	}

	sources, err := source.Load(patterns)
	if err != nil {
		return nil, err
	}

	compiler := parser.NewCompiler(parser.Options{RulePattern: cfg.Pattern(), Logger: logger})
	res, err := source.Compile(ctx, compiler, sources)
	if err != nil {
		return nil, err
	}

	records, attrDiags, err := export.BuildAll(res, cfg.RecordDefaults(), cfg.Templater())
	if err != nil {
		return nil, err
	}

	diags := make([]parser.Diagnostic, 0, len(res.Diagnostics)+len(attrDiags))
	diags = append(diags, res.Diagnostics...)
	diags = append(diags, attrDiags...)
	return &build{documents: len(sources), result: res, records: records, diagnostics: diags}, nil
}

func RunCompile(ctx context.Context, w, errW io.Writer, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, errW)
	return compileOnce(ctx, w, cfg, logger, files)
}

func compileOnce(ctx context.Context, w io.Writer, cfg *config.Config, logger *slog.Logger, files []string) error {
	b, err := compileRules(ctx, cfg, logger, files)
	if err != nil {
		return err
	}

	for _, d := range b.diagnostics {
		ui.DiagnosticLine(w, d)
	}

	status := b.result.Status()
	if status != parser.StatusOK {
		ui.SummaryLine(w, b.documents, 0, b.result.Skipped, len(b.diagnostics))
		return fmt.Errorf("%w: %s", ErrNothingCompiled, status)
	}

	if err := storeRun(w, cfg, b); err != nil {
		return err
	}

	if err := writeArtifact(cfg.Output.JSON, b.records, export.WriteJSON); err != nil {
		return err
	}
	if cfg.Output.JSON != "" {
		ui.WroteLine(w, cfg.Output.JSON, len(b.records))
	}
	if err := writeArtifact(cfg.Output.CSV, b.records, export.WriteCSV); err != nil {
		return err
	}
	if cfg.Output.CSV != "" {
		ui.WroteLine(w, cfg.Output.CSV, len(b.records))
	}

	ui.SummaryLine(w, b.documents, len(b.records), b.result.Skipped, len(b.diagnostics))
	logger.Info("compile finished", "rules", len(b.records), "skipped", b.result.Skipped)
	return nil
}

func storeRun(w io.Writer, cfg *config.Config, b *build) error {
	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	run := db.Run{
		Documents:   b.documents,
		Skipped:     b.result.Skipped,
		Status:      b.result.Status(),
		Diagnostics: b.diagnostics,
		Rules:       make([]db.StoredRule, len(b.records)),
	}
	for i, rec := range b.records {
		rule := b.result.Rules[i]
		run.Rules[i] = db.StoredRule{Record: rec, Document: rule.Document, Line: rule.Line}
	}

	_, changes, err := db.SaveRun(sqlDB, run)
	if err != nil {
		return err
	}
	for _, c := range changes {
		ui.RuleLine(w, string(c.Change), c.ID, c.Version)
	}
	return nil
}

// writeArtifact writes records to path with write. An empty path is skipped.
func writeArtifact(path string, records []export.Record, write func(io.Writer, []export.Record) error) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
