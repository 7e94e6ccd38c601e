// Package watch recompiles rule documents when they change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change triggers a rebuild.
const DefaultDebounce = 150 * time.Millisecond

// ErrRunning is returned when Run is called on a watcher that is already running.
var ErrRunning = errors.New("watcher already running")

// Watcher watches the directories holding the rule documents matched by a
// set of glob patterns.
type Watcher struct {
	patterns []string
	interval time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	running bool
}

// New creates a watcher for patterns. A zero interval uses DefaultDebounce.
func New(patterns []string, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{patterns: patterns, interval: interval, logger: logger, fsw: fsw}, nil
}

// Dirs returns the directories to watch for patterns, sorted.
func Dirs(patterns []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range patterns {
		d := filepath.Clean(filepath.Dir(p))
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Matches reports whether path is selected by one of the patterns.
func (w *Watcher) Matches(path string) bool {
	path = filepath.Clean(path)
	for _, p := range w.patterns {
		if ok, err := filepath.Match(filepath.Clean(p), path); err == nil && ok {
			return true
		}
	}
	return false
}

// Run calls rebuild for every debounced burst of changes until ctx is
// cancelled. Rebuilds run on the calling goroutine one at a time; changes
// seen during a rebuild start another once it returns. A failing rebuild is
// logged and watching continues.
func (w *Watcher) Run(ctx context.Context, rebuild func(context.Context) error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrRunning
	}
	w.running = true
	w.mu.Unlock()
	defer w.fsw.Close()

	for _, d := range Dirs(w.patterns) {
		if err := w.fsw.Add(d); err != nil {
			return fmt.Errorf("watching %s: %w", d, err)
		}
		w.logger.Debug("watching directory", "path", d)
	}
	w.logger.Info("watch started", "patterns", strings.Join(w.patterns, ","), "debounce_ms", w.interval.Milliseconds())

	d := newDebouncer(w.interval)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op == fsnotify.Chmod || !w.Matches(event.Name) {
				continue
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			d.trigger()

		case <-d.fire:
			if ctx.Err() != nil {
				continue
			}
			start := time.Now()
			if err := rebuild(ctx); err != nil {
				w.logger.Error("rebuild failed", "error", err)
				continue
			}
			w.logger.Debug("rebuild finished", "duration_ms", time.Since(start).Milliseconds())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// debouncer signals fire once no trigger arrived for interval. It is driven
// from a single goroutine; only the timer callback runs elsewhere.
type debouncer struct {
	interval time.Duration
	timer    *time.Timer
	fire     chan struct{}
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval, fire: make(chan struct{}, 1)}
}

func (d *debouncer) trigger() {
	select {
	case <-d.fire:
	default:
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.signal)
		return
	}
	d.timer.Reset(d.interval)
}

func (d *debouncer) signal() {
	select {
	case d.fire <- struct{}{}:
	default:
	}
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
	}
}
