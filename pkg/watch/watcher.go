// Package watch re-runs a scan when source files under a workspace change.
package watch

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/internal/scanner"
	"github.com/panbanda/debtmap/pkg/config"
)

// DefaultDebounce is used when a non-positive debounce is given.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives the workspace-relative paths that changed in one burst.
type Callback func(ctx context.Context, changed []string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logging.OrDiscard(l)
	}
}

// WithOutput sets where status lines are printed. Nil silences them.
func WithOutput(out io.Writer) Option {
	return func(w *Watcher) {
		w.out = out
	}
}

// Watcher monitors files for changes and triggers a re-scan.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	filter    *scanner.Filter
	manifest  string
	debounce  time.Duration
	logger    *slog.Logger
	out       io.Writer
	callback  Callback
	mu        sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a watcher for root using cfg's exclusion rules.
func NewWatcher(root string, cfg *config.Config, debounce time.Duration, opts ...Option) (*Watcher, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		root:      abs,
		filter:    scanner.NewScanner(cfg).Filter(abs),
		manifest:  filepath.ToSlash(cfg.Audit.Manifest),
		debounce:  debounce,
		logger:    logging.NewDiscardLogger(),
		out:       os.Stdout,
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SetCallback sets the function to call after a burst of changes settles.
func (w *Watcher) SetCallback(cb Callback) {
	w.callback = cb
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root {
			rel, err := filepath.Rel(w.root, path)
			if err == nil && w.filter.SkipDir(rel) {
				return filepath.SkipDir
			}
		}
		return w.fsWatcher.Add(path)
	})
}

// Start watches until ctx is done. Callbacks run one at a time.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.printf(color.FgCyan, "Watching for changes in %s...\n", w.root)
	w.printf(color.FgCyan, "Press Ctrl+C to stop\n\n")

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
			w.printf(color.FgRed, "Watch error: %v\n", err)
		}
	}
}

func (w *Watcher) printf(attr color.Attribute, format string, args ...any) {
	if w.out == nil {
		return
	}
	_, _ = color.New(attr).Fprintf(w.out, format, args...)
}

// relevant reports whether rel is a file a scan would read.
func (w *Watcher) relevant(rel string) bool {
	if rel == w.manifest {
		return true
	}
	return w.filter.Match(rel)
}

// handleEvent records a filesystem event as pending.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.filter.SkipDir(rel) {
				if err := w.addTree(event.Name); err != nil {
					w.logger.Warn("watch directory failed", "path", rel, "error", err)
				}
			}
			return
		}
	}

	if !w.relevant(rel) {
		return
	}

	w.mu.Lock()
	w.pending[rel] = time.Now()
	w.mu.Unlock()
}

// processDebounced processes pending changes after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// takeReady removes and returns paths that have been quiet for the
// debounce period. Nothing is returned while any path is still settling.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	for _, last := range w.pending {
		if now.Sub(last) < w.debounce {
			return nil
		}
	}
	ready := make([]string, 0, len(w.pending))
	for path := range w.pending {
		ready = append(ready, path)
	}
	clear(w.pending)
	sort.Strings(ready)
	return ready
}

// processPending fires the callback once for every settled burst.
func (w *Watcher) processPending(ctx context.Context) {
	ready := w.takeReady(time.Now())
	if len(ready) == 0 || w.callback == nil {
		return
	}

	if len(ready) == 1 {
		w.printf(color.FgYellow, "\nFile changed: %s\n", ready[0])
	} else {
		w.printf(color.FgYellow, "\n%d files changed\n", len(ready))
	}
	w.callback(ctx, ready)
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories currently watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
