// Package engine runs every analyzer over a workspace and aggregates the
// findings into a DebtMap.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panbanda/debtmap/internal/cache"
	"github.com/panbanda/debtmap/internal/fileproc"
	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/internal/scanner"
	"github.com/panbanda/debtmap/internal/vcs"
	"github.com/panbanda/debtmap/pkg/analyzer"
	"github.com/panbanda/debtmap/pkg/analyzer/complexity"
	"github.com/panbanda/debtmap/pkg/analyzer/deps"
	"github.com/panbanda/debtmap/pkg/analyzer/graph"
	"github.com/panbanda/debtmap/pkg/analyzer/stale"
	"github.com/panbanda/debtmap/pkg/analyzer/todo"
	"github.com/panbanda/debtmap/pkg/config"
	"github.com/panbanda/debtmap/pkg/models"
	"github.com/panbanda/debtmap/pkg/source"
)

// MaxConcurrency bounds the number of files analyzed at once.
const MaxConcurrency = 20

// ErrNoWorkspace is returned when the scan root is missing or not a directory.
var ErrNoWorkspace = errors.New("no workspace")

// ProgressFunc receives (processed, total, file) after each analyzed file.
type ProgressFunc = analyzer.ProgressFunc

// Notifier is told once per Engine that the workspace has no version control.
type Notifier func(root string)

// Engine scans workspaces. It keeps the blame cache of every root and cache
// directory it has scanned, so repeated scans of one workspace reuse history
// lookups.
// An Engine is safe for concurrent use.
type Engine struct {
	logger      *slog.Logger
	notify      Notifier
	notifyOnce  sync.Once
	opener      vcs.Opener
	runner      vcs.CommandRunner
	store       vcs.BlameStore
	auditRunner deps.Runner
	now         func() time.Time

	mu        sync.Mutex
	histories map[string]*vcs.History
}

// Option is a functional option for configuring Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logging.OrDiscard(l)
	}
}

// WithNotifier sets the callback used when a workspace is not under version
// control.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notify = n
	}
}

// WithOpener sets how repositories are detected.
func WithOpener(o vcs.Opener) Option {
	return func(e *Engine) {
		e.opener = o
	}
}

// WithRunner sets how git commands are executed.
func WithRunner(r vcs.CommandRunner) Option {
	return func(e *Engine) {
		e.runner = r
	}
}

// WithBlameStore sets the persistent blame store for every workspace,
// replacing the one derived from the cache configuration.
func WithBlameStore(s vcs.BlameStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithAuditRunner sets how the dependency audit tool is executed.
func WithAuditRunner(r deps.Runner) Option {
	return func(e *Engine) {
		e.auditRunner = r
	}
}

// WithClock sets the time source for ages and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    logging.NewDiscardLogger(),
		now:       time.Now,
		histories: make(map[string]*vcs.History),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// history returns the history provider for root and the cache directory cfg
// resolves to, creating it on first use.
func (e *Engine) history(root string, cfg *config.Config) *vcs.History {
	dir := e.cacheDir(root, cfg)
	key := root + "\x00" + dir

	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.histories[key]; ok {
		return h
	}

	opts := []vcs.HistoryOption{vcs.WithLogger(e.logger)}
	if e.opener != nil {
		opts = append(opts, vcs.WithOpener(e.opener))
	}
	if e.runner != nil {
		opts = append(opts, vcs.WithRunner(e.runner))
	}
	if store := e.blameStore(root, dir, cfg); store != nil {
		opts = append(opts, vcs.WithBlameStore(store))
	}

	h := vcs.NewHistory(root, opts...)
	e.histories[key] = h
	return h
}

// cacheDir returns the absolute persistent cache directory for root, or ""
// when cfg disables the cache or an explicit store is set.
func (e *Engine) cacheDir(root string, cfg *config.Config) string {
	if e.store != nil || !cfg.Cache.Enabled || cfg.Cache.Dir == "" {
		return ""
	}
	if filepath.IsAbs(cfg.Cache.Dir) {
		return cfg.Cache.Dir
	}
	return filepath.Join(root, cfg.Cache.Dir)
}

func (e *Engine) blameStore(root, dir string, cfg *config.Config) vcs.BlameStore {
	if e.store != nil {
		return e.store
	}
	if dir == "" {
		return nil
	}
	c, err := cache.New(dir, cfg.Cache.TTL, true)
	if err != nil {
		e.logger.Warn("persistent blame cache unavailable", "dir", dir, "error", err)
		return nil
	}
	return cache.NewBlameStore(c, root)
}

// ClearCache drops all cached blame results of every scanned workspace.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range e.histories {
		h.ClearCache()
	}
}

// ClearWorkspaceCache drops cached blame results for root, including the
// persistent store configured by cfg.
func (e *Engine) ClearWorkspaceCache(root string, cfg *config.Config) error {
	abs, err := resolveRoot(root)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e.history(abs, cfg).ClearCache()
	return nil
}

func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoWorkspace, root)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNoWorkspace, root)
	}
	return abs, nil
}

// Scan analyzes the workspace at root. Only a missing or non-directory root
// is an error; analyzer failures reduce the result instead. cfg is not
// modified; nil means defaults. onProgress may be nil.
func (e *Engine) Scan(ctx context.Context, root string, cfg *config.Config, onProgress ProgressFunc) (*models.DebtMap, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg = cfg.Clone()

	log := e.logger.With("run", uuid.NewString(), "root", abs)
	start := time.Now()

	hist := e.history(abs, cfg)
	var commitSHA string
	if hist.IsRepository(ctx) {
		commitSHA = hist.CurrentCommit(ctx)
	} else {
		log.Info("workspace is not a git repository, history is unavailable")
		e.notifyOnce.Do(func() {
			if e.notify != nil {
				e.notify(abs)
			}
		})
	}

	discovered, err := scanner.NewScanner(cfg).ScanDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWorkspace, err)
	}
	if discovered.Truncated() {
		log.Warn("file limit reached, scanning a subset", "limit", cfg.MaxFilesToScan, "found", discovered.Total)
	}
	files := discovered.Files

	src := source.NewCached(source.NewFilesystem(), 0)
	fileItems := e.scanFiles(ctx, files, commitSHA, cfg, src, hist, log, onProgress)

	var depItems []models.DebtItem
	if cfg.Audit.Enabled {
		depItems = e.auditor(cfg, log).Scan(ctx, abs)
	}

	g := graph.NewBuilder(
		graph.WithSource(src),
		graph.WithLogger(log),
		graph.WithMaxWorkers(MaxConcurrency),
	).Build(ctx, files)
	if cycles := g.Cycles(); len(cycles) > 0 {
		log.Info("import cycles found", "count", len(cycles), "first", strings.Join(cycles[0], ", "))
	}

	staleItems := stale.New(hist,
		stale.WithThresholds(cfg.StaleDaysThreshold, cfg.StaleImportThreshold),
		stale.WithMaxWorkers(MaxConcurrency),
		stale.WithClock(e.now),
		stale.WithLogger(log),
	).Scan(ctx, files, g, commitSHA)

	items := make([]models.DebtItem, 0, len(fileItems)+len(depItems)+len(staleItems))
	items = append(items, fileItems...)
	items = append(items, depItems...)
	items = append(items, staleItems...)

	stats := Aggregate(items, g.FanIn)
	log.Debug("scan complete", "files", len(files), "items", len(items), "duration", time.Since(start))

	return &models.DebtMap{
		Items:     items,
		ScannedAt: e.now(),
		CommitSHA: commitSHA,
		Stats:     stats,
	}, nil
}

// scanFiles runs the per-file analyzers on the worker pool and returns their
// items in file order.
func (e *Engine) scanFiles(ctx context.Context, files []source.File, commitSHA string, cfg *config.Config, src source.ContentSource, hist *vcs.History, log *slog.Logger, onProgress ProgressFunc) []models.DebtItem {
	pattern, err := todo.CompilePatterns(cfg.TodoPatterns)
	if err != nil {
		log.Warn("invalid todo patterns, using defaults", "error", err)
		pattern, _ = todo.CompilePatterns(todo.DefaultPatterns)
	}
	t := cfg.ComplexityThresholds

	analyzers := []analyzer.FileAnalyzer{
		todo.New(hist,
			todo.WithPattern(pattern),
			todo.WithSource(src),
			todo.WithLogger(log),
			todo.WithClock(e.now),
		),
		complexity.New(hist,
			complexity.WithThresholds(complexity.Thresholds{Low: t.Low, Medium: t.Medium, High: t.High, Critical: t.Critical}),
			complexity.WithSource(src),
			complexity.WithLogger(log),
			complexity.WithClock(e.now),
		),
	}

	tracker := analyzer.NewTracker(onProgress)
	tracker.SetTotal(len(files))

	results, errs := fileproc.ForEachFile(ctx, files, func(ctx context.Context, f source.File) ([]models.DebtItem, error) {
		var items []models.DebtItem
		for _, a := range analyzers {
			items = append(items, a.Scan(ctx, f, commitSHA)...)
		}
		return items, nil
	}, fileproc.Options{
		MaxWorkers: MaxConcurrency,
		OnProgress: func(f source.File) { tracker.Tick(f.Path) },
	})
	if errs.HasErrors() {
		log.Warn("some files were not analyzed", "count", len(errs.Errors), "error", errs)
	}

	var items []models.DebtItem
	for _, r := range results {
		items = append(items, r...)
	}
	return items
}

func (e *Engine) auditor(cfg *config.Config, log *slog.Logger) *deps.Analyzer {
	opts := []deps.Option{
		deps.WithCommand(cfg.Audit.Command...),
		deps.WithManifest(cfg.Audit.Manifest),
		deps.WithTimeout(cfg.Audit.Timeout),
		deps.WithLogger(log),
	}
	if e.auditRunner != nil {
		opts = append(opts, deps.WithRunner(e.auditRunner))
	}
	return deps.New(opts...)
}
