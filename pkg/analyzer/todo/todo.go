// Package todo finds debt markers such as TODO and FIXME in source lines.
package todo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/internal/vcs"
	"github.com/panbanda/debtmap/pkg/analyzer"
	"github.com/panbanda/debtmap/pkg/models"
	"github.com/panbanda/debtmap/pkg/source"
)

// DefaultPatterns are the marker words matched when none are configured.
var DefaultPatterns = []string{"TODO", "FIXME", "HACK", "XXX", "TEMP"}

// ErrNoPatterns is returned by CompilePatterns for an empty word list.
var ErrNoPatterns = errors.New("no todo patterns")

// Analyzer reports at most one marker per line, annotated with blame.
type Analyzer struct {
	history analyzer.BlameSource
	src     source.ContentSource
	pattern *regexp.Regexp
	logger  *slog.Logger
	now     func() time.Time
}

var _ analyzer.FileAnalyzer = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithPattern sets the compiled marker expression. See CompilePatterns.
func WithPattern(re *regexp.Regexp) Option {
	return func(a *Analyzer) {
		if re != nil {
			a.pattern = re
		}
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

// New creates a todo analyzer. history may be nil, in which case every
// finding is treated as age 0.
func New(history analyzer.BlameSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		history: history,
		src:     source.NewFilesystem(),
		logger:  logging.NewDiscardLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.pattern == nil {
		a.pattern = regexp.MustCompile(buildExpr(DefaultPatterns))
	}
	return a
}

// CompilePatterns builds one case-insensitive, word-bounded alternation
// over words. Words are matched literally.
func CompilePatterns(words []string) (*regexp.Regexp, error) {
	var cleaned []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			cleaned = append(cleaned, w)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoPatterns
	}
	re, err := regexp.Compile(buildExpr(cleaned))
	if err != nil {
		return nil, fmt.Errorf("compile todo patterns: %w", err)
	}
	return re, nil
}

func buildExpr(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return `(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`
}

// Name implements analyzer.FileAnalyzer.
func (a *Analyzer) Name() string {
	return "todo"
}

type hit struct {
	line int
	text string
}

// Scan implements analyzer.FileAnalyzer.
func (a *Analyzer) Scan(ctx context.Context, file source.File, commitSHA string) []models.DebtItem {
	content, err := source.ReadText(a.src, file)
	if err != nil {
		a.logger.Debug("todo scan skipped", "file", file.Path, "error", err)
		return nil
	}

	var hits []hit
	for i, line := range strings.Split(string(content), "\n") {
		if a.pattern.MatchString(line) {
			hits = append(hits, hit{line: i + 1, text: strings.TrimSpace(line)})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	var blame map[int]vcs.BlameEntry
	if a.history != nil && commitSHA != "" {
		blame = vcs.BlameIndex(a.history.Blame(ctx, file.Path, commitSHA))
	}

	now := a.now()
	items := make([]models.DebtItem, 0, len(hits))
	for _, h := range hits {
		entry, ok := blame[h.line]
		age := 0
		if ok {
			age = entry.AgeInDays(now)
		}
		item := models.DebtItem{
			ID:       models.LocationID(models.KindTodo, file.Path, h.line),
			Kind:     models.KindTodo,
			Severity: models.AgeSeverity(age),
			File:     file.Path,
			Line:     h.line,
			Message:  h.text,
		}
		analyzer.Annotate(&item, entry, ok, age)
		items = append(items, item)
	}
	return items
}
