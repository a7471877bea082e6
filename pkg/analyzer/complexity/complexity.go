// Package complexity estimates cyclomatic complexity of brace-language
// functions without a parser.
package complexity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/internal/vcs"
	"github.com/panbanda/debtmap/pkg/analyzer"
	"github.com/panbanda/debtmap/pkg/models"
	"github.com/panbanda/debtmap/pkg/source"
)

// Analyzer reports functions whose estimated complexity reaches the low band.
type Analyzer struct {
	history    analyzer.BlameSource
	src        source.ContentSource
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

var _ analyzer.FileAnalyzer = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithThresholds sets the severity bands.
func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) {
		a.thresholds = t
	}
}

// WithSource sets where file content is read from.
func WithSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		a.src = src
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logging.OrDiscard(l)
	}
}

// WithClock overrides the time used to compute ages.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates a new complexity analyzer. history may be nil.
func New(history analyzer.BlameSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		history:    history,
		src:        source.NewFilesystem(),
		thresholds: DefaultThresholds(),
		logger:     logging.NewDiscardLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements analyzer.FileAnalyzer.
func (a *Analyzer) Name() string {
	return "complexity"
}

// Scan implements analyzer.FileAnalyzer.
func (a *Analyzer) Scan(ctx context.Context, file source.File, commitSHA string) []models.DebtItem {
	if !Supported(file.Path) {
		return nil
	}
	content, err := source.ReadText(a.src, file)
	if err != nil {
		a.logger.Debug("complexity scan skipped", "file", file.Path, "error", err)
		return nil
	}

	type finding struct {
		fn       Function
		severity models.Severity
	}
	var found []finding
	for _, fn := range Extract(string(content)) {
		if sev, ok := a.thresholds.Classify(fn.Cyclomatic); ok {
			found = append(found, finding{fn: fn, severity: sev})
		}
	}
	if len(found) == 0 {
		return nil
	}

	var blame map[int]vcs.BlameEntry
	if a.history != nil && commitSHA != "" {
		blame = vcs.BlameIndex(a.history.Blame(ctx, file.Path, commitSHA))
	}

	now := a.now()
	items := make([]models.DebtItem, 0, len(found))
	for _, f := range found {
		item := models.DebtItem{
			ID:       models.LocationID(models.KindComplexity, file.Path, f.fn.Line),
			Kind:     models.KindComplexity,
			Severity: f.severity,
			File:     file.Path,
			Line:     f.fn.Line,
			Message:  fmt.Sprintf("Function '%s' has cyclomatic complexity %d", f.fn.Name, f.fn.Cyclomatic),
		}
		entry, ok := blame[f.fn.Line]
		analyzer.Annotate(&item, entry, ok, entry.AgeInDays(now))
		items = append(items, item)
	}
	return items
}
