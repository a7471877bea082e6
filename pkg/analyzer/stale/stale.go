// Package stale reports widely imported files that have not changed in a
// long time.
package stale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panbanda/debtmap/internal/fileproc"
	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/internal/vcs"
	"github.com/panbanda/debtmap/pkg/analyzer"
	"github.com/panbanda/debtmap/pkg/analyzer/graph"
	"github.com/panbanda/debtmap/pkg/models"
	"github.com/panbanda/debtmap/pkg/source"
)

const (
	// DefaultDays is the minimum age in days of a reported file.
	DefaultDays = 365
	// DefaultImports is the minimum fan-in of a reported file.
	DefaultImports = 5
	// CriticalImports is the fan-in at which a year-old file is critical.
	CriticalImports = 10
)

// Analyzer correlates import fan-in with the age of the last commit.
type Analyzer struct {
	history    analyzer.CommitSource
	days       int
	imports    int
	maxWorkers int
	logger     *slog.Logger
	now        func() time.Time
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithThresholds sets the minimum age and fan-in of reported files.
func WithThresholds(days, imports int) Option {
	return func(a *Analyzer) {
		a.days = days
		a.imports = imports
	}
}

// WithMaxWorkers bounds the number of concurrent history queries.
func WithMaxWorkers(n int) Option {
	return func(a *Analyzer) {
		a.maxWorkers = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logging.OrDiscard(l)
	}
}

// WithClock sets the time source used to compute ages.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates a staleness analyzer.
func New(history analyzer.CommitSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		history: history,
		days:    DefaultDays,
		imports: DefaultImports,
		logger:  logging.NewDiscardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the analyzer name.
func (a *Analyzer) Name() string {
	return "stale"
}

type candidate struct {
	file  source.File
	fanIn int
}

// Scan reports every file whose fan-in and age both reach the thresholds.
// Without a commit nothing is reported. Items follow the order of files.
func (a *Analyzer) Scan(ctx context.Context, files []source.File, g *graph.ImportGraph, commitSHA string) []models.DebtItem {
	if commitSHA == "" || a.history == nil {
		return nil
	}

	var candidates []candidate
	var targets []source.File
	for _, f := range files {
		n := g.FanIn(f.Path)
		if n < a.imports {
			continue
		}
		candidates = append(candidates, candidate{file: f, fanIn: n})
		targets = append(targets, f)
	}
	if len(candidates) == 0 {
		return nil
	}

	commits, errs := fileproc.ForEachFile(ctx, targets, func(ctx context.Context, f source.File) (vcs.CommitInfo, error) {
		return a.history.LastCommit(ctx, f.Path)
	}, fileproc.Options{MaxWorkers: a.maxWorkers})
	failed := make(map[string]bool)
	if errs.HasErrors() {
		for _, e := range errs.Errors {
			failed[e.Path] = true
			a.logger.Debug("stale check skipped", "file", e.Path, "error", e.Err)
		}
	}

	now := a.now()
	var items []models.DebtItem
	for i, c := range candidates {
		if failed[c.file.Path] {
			continue
		}
		info := commits[i]
		age := vcs.AgeInDays(info.Date, now)
		if age < a.days {
			continue
		}
		a.logger.Debug("stale file", "file", c.file.Path, "age", age, "importers", g.Importers(c.file.Path))
		items = append(items, models.DebtItem{
			ID:         models.LocationID(models.KindStale, c.file.Path, 0),
			Kind:       models.KindStale,
			Severity:   Severity(age, c.fanIn, a.imports),
			File:       c.file.Path,
			Message:    fmt.Sprintf("File unchanged for %d days but imported by %d files", age, c.fanIn),
			AgeInDays:  models.IntPtr(age),
			LastCommit: info.Hash,
		})
	}
	return items
}

// Severity grades a stale file by age and fan-in. threshold is the
// configured minimum fan-in.
func Severity(ageDays, fanIn, threshold int) models.Severity {
	switch {
	case ageDays > 365 && fanIn >= CriticalImports:
		return models.SeverityCritical
	case ageDays > 365 && fanIn >= threshold:
		return models.SeverityHigh
	case ageDays > 180 && fanIn >= threshold:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}
