package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chriserin/rulec/internal/db"
	"github.com/chriserin/rulec/internal/ui"
)

var categoryFlag string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunList(cmd.OutOrStdout(), categoryFlag)
	},
}

func init() {
	listCmd.Flags().StringVar(&categoryFlag, "category", "", "Filter by category")
	rootCmd.AddCommand(listCmd)
}

func RunList(w io.Writer, category string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	rows, err := db.ListRules(sqlDB, category)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	// Compute column widths
	idWidth, catWidth := 0, 0
	for _, r := range rows {
		idWidth = max(idWidth, len(r.ID))
		catWidth = max(catWidth, len(r.Category))
	}

	for _, r := range rows {
		ui.ListRow(w, r.ID, r.Category, r.Version, r.Priority, r.Conditions, r.Enabled, idWidth, catWidth)
	}
	return nil
}
