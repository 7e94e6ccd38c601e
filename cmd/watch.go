package cmd

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chriserin/rulec/internal/watch"
)

var debounceFlag time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompile whenever a rule document changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return RunWatch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), debounceFlag)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&debounceFlag, "debounce", watch.DefaultDebounce, "Quiet period before recompiling")
	rootCmd.AddCommand(watchCmd)
}

// RunWatch compiles once, then again after every change to a source
// document, until ctx is cancelled. Compile failures are reported and
// watching continues.
func RunWatch(ctx context.Context, w, errW io.Writer, debounce time.Duration) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, errW)

	watcher, err := watch.New(cfg.Sources, debounce, logger)
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context) error {
		return compileOnce(ctx, w, cfg, logger, nil)
	}
	if err := rebuild(ctx); err != nil {
		logger.Error("compile failed", "error", err)
	}
	return watcher.Run(ctx, rebuild)
}
