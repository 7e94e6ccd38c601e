package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chriserin/rulec/internal/config"
	"github.com/chriserin/rulec/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize rulec in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunInit(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func RunInit(w io.Writer) error {
	// rules/ directory
	_, err := os.Stat("rules")
	rulesExists := err == nil
	if err := os.MkdirAll("rules", 0o755); err != nil {
		return fmt.Errorf("creating rules directory: %w", err)
	}
	if rulesExists {
		fmt.Fprintln(w, "rules/ already exists")
	} else {
		fmt.Fprintln(w, "rules/ created")
	}

	// configuration
	cfgPath := rootFlags.config
	if cfgPath == "" {
		cfgPath = config.FileName
	}
	_, err = os.Stat(cfgPath)
	cfgExists := err == nil
	if !cfgExists {
		if err := config.Write(cfgPath, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s created\n", cfgPath)
	} else {
		fmt.Fprintf(w, "%s already exists\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// database
	_, err = os.Stat(cfg.Database)
	dbExists := err == nil
	sqlDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	sqlDB.Close()
	if dbExists {
		fmt.Fprintf(w, "%s already exists\n", cfg.Database)
	} else {
		fmt.Fprintf(w, "%s created\n", cfg.Database)
	}

	// gitignore
	msgs, err := ensureGitignore(filepath.ToSlash(cfg.Database))
	if err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	for _, msg := range msgs {
		fmt.Fprintln(w, msg)
	}

	return nil
}

func ensureGitignore(entry string) ([]string, error) {
	data, err := os.ReadFile(".gitignore")
	if os.IsNotExist(err) {
		if err := os.WriteFile(".gitignore", []byte(entry+"\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{".gitignore created", entry + " added to .gitignore"}, nil
	}
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return []string{entry + " already in .gitignore"}, nil
		}
	}

	content := string(data)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"

	if err := os.WriteFile(".gitignore", []byte(content), 0o644); err != nil {
		return nil, err
	}
	return []string{entry + " added to .gitignore"}, nil
}
