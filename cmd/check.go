package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chriserin/rulec/internal/parser"
	"github.com/chriserin/rulec/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [files...]",
	Short: "Compile rule documents and report diagnostics without writing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunCheck(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// ErrCheckFailed is returned when a document has error-severity diagnostics.
var ErrCheckFailed = errors.New("check failed")

func RunCheck(ctx context.Context, w, errW io.Writer, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, errW)

	b, err := compileRules(ctx, cfg, logger, files)
	if err != nil {
		return err
	}

	errs := 0
	for _, d := range b.diagnostics {
		ui.DiagnosticLine(w, d)
		if d.Severity == parser.SeverityError {
			errs++
		}
	}
	ui.SummaryLine(w, b.documents, len(b.records), b.result.Skipped, len(b.diagnostics))

	if errs > 0 {
		return fmt.Errorf("%w: %d errors", ErrCheckFailed, errs)
	}
	return nil
}
