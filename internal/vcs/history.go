package vcs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/panbanda/debtmap/internal/logging"
)

// CommitInfo is the most recent commit touching a file.
type CommitInfo struct {
	Hash string
	Date time.Time
}

type blameKey struct {
	file   string
	commit string
}

// History answers blame and last-commit queries for one workspace.
// Blame results are cached by (file, commit) until ClearCache.
// Safe for concurrent use.
type History struct {
	root   string
	opener Opener
	runner CommandRunner
	store  BlameStore
	logger *slog.Logger

	maxTries   uint64
	maxElapsed time.Duration

	blame sync.Map // blameKey -> []BlameEntry
	group singleflight.Group
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithOpener sets the repository opener.
func WithOpener(o Opener) HistoryOption {
	return func(h *History) {
		h.opener = o
	}
}

// WithRunner sets the git command runner.
func WithRunner(r CommandRunner) HistoryOption {
	return func(h *History) {
		h.runner = r
	}
}

// WithBlameStore adds a persistent second-level blame cache.
func WithBlameStore(s BlameStore) HistoryOption {
	return func(h *History) {
		h.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) HistoryOption {
	return func(h *History) {
		h.logger = logging.OrDiscard(l)
	}
}

// WithRetryBudget bounds LastCommit retries on transient git failures.
func WithRetryBudget(tries uint64, elapsed time.Duration) HistoryOption {
	return func(h *History) {
		h.maxTries = tries
		h.maxElapsed = elapsed
	}
}

// NewHistory creates a History rooted at the workspace directory root.
func NewHistory(root string, opts ...HistoryOption) *History {
	h := &History{
		root:       root,
		opener:     NewGitOpener(),
		runner:     ExecRunner{},
		logger:     logging.NewDiscardLogger(),
		maxTries:   3,
		maxElapsed: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root returns the workspace root.
func (h *History) Root() string {
	return h.root
}

// IsRepository reports whether the workspace is inside a git repository.
func (h *History) IsRepository(ctx context.Context) bool {
	_, err := h.opener.PlainOpenWithDetect(h.root)
	return err == nil
}

// CurrentCommit returns the HEAD hash, or "" without a repository or commits.
func (h *History) CurrentCommit(ctx context.Context) string {
	repo, err := h.opener.PlainOpenWithDetect(h.root)
	if err != nil {
		return ""
	}
	hash, err := repo.HeadHash()
	if err != nil {
		h.logger.Debug("no HEAD commit", "root", h.root, "error", err)
		return ""
	}
	return hash
}

// Blame returns per-line attribution for a workspace-relative file.
// It never fails: any error yields an empty result.
func (h *History) Blame(ctx context.Context, file, commitSHA string) []BlameEntry {
	if commitSHA == "" || file == "" {
		return nil
	}
	key := blameKey{file: file, commit: commitSHA}
	if v, ok := h.blame.Load(key); ok {
		return v.([]BlameEntry)
	}

	v, _, _ := h.group.Do(file+"\x00"+commitSHA, func() (any, error) {
		if v, ok := h.blame.Load(key); ok {
			return v, nil
		}
		entries, ok := h.loadBlame(ctx, file, commitSHA)
		if !ok {
			return entries, nil
		}
		actual, _ := h.blame.LoadOrStore(key, entries)
		return actual, nil
	})
	return v.([]BlameEntry)
}

// loadBlame reports ok=false when the result must not be cached.
func (h *History) loadBlame(ctx context.Context, file, commitSHA string) ([]BlameEntry, bool) {
	if h.store != nil {
		if entries, ok := h.store.Get(file, commitSHA); ok {
			return entries, true
		}
	}

	out, err := h.runner.Run(ctx, h.root, "blame", "--porcelain", "--", filepath.ToSlash(file))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		h.logger.Debug("blame failed", "file", file, "error", err)
		return []BlameEntry{}, true
	}

	entries, err := ParseBlamePorcelain(bytes.NewReader(out))
	if err != nil {
		h.logger.Warn("unreadable blame output", "file", file, "error", err)
		return []BlameEntry{}, true
	}
	if entries == nil {
		entries = []BlameEntry{}
	}

	if h.store != nil {
		if err := h.store.Put(file, commitSHA, entries); err != nil {
			h.logger.Debug("blame cache write failed", "file", file, "error", err)
		}
	}
	return entries, true
}

// LastCommit returns the most recent commit touching file.
// Transient git failures are retried within the retry budget.
func (h *History) LastCommit(ctx context.Context, file string) (CommitInfo, error) {
	args := []string{"log", "-1", "--format=%H|%aI", "--", filepath.ToSlash(file)}

	var out []byte
	op := func() error {
		b, err := h.runner.Run(ctx, h.root, args...)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = b
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxElapsedTime = h.maxElapsed
	var policy backoff.BackOff = eb
	if h.maxTries > 0 {
		policy = backoff.WithMaxRetries(eb, h.maxTries-1)
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return CommitInfo{}, fmt.Errorf("last commit of %s: %w", file, err)
	}

	line := strings.TrimSpace(string(out))
	if line == "" {
		return CommitInfo{}, ErrNoHistory
	}
	hash, date, ok := strings.Cut(line, "|")
	if !ok {
		return CommitInfo{}, fmt.Errorf("last commit of %s: unexpected log output %q", file, line)
	}
	when, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("last commit of %s: %w", file, err)
	}
	return CommitInfo{Hash: hash, Date: when}, nil
}

// ClearCache drops every cached blame result, including the persistent store.
func (h *History) ClearCache() {
	h.blame.Clear()
	if h.store != nil {
		if err := h.store.Clear(); err != nil {
			h.logger.Warn("failed to clear blame store", "error", err)
		}
	}
}
