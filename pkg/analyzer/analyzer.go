// Package analyzer defines the contracts shared by the debt analyzers.
package analyzer

import (
	"context"

	"github.com/panbanda/debtmap/internal/vcs"
	"github.com/panbanda/debtmap/pkg/models"
	"github.com/panbanda/debtmap/pkg/source"
)

// FileAnalyzer inspects one file at a time. Implementations never return
// errors: failures yield an empty result and are logged.
// They must be safe for concurrent use.
type FileAnalyzer interface {
	Name() string
	Scan(ctx context.Context, file source.File, commitSHA string) []models.DebtItem
}

// BlameSource resolves per-line history. *vcs.History satisfies it.
type BlameSource interface {
	Blame(ctx context.Context, file, commitSHA string) []vcs.BlameEntry
}

// CommitSource resolves the last commit of a file. *vcs.History satisfies it.
type CommitSource interface {
	LastCommit(ctx context.Context, file string) (vcs.CommitInfo, error)
}

// Annotate copies blame attribution onto item. Without an entry the item
// keeps no author, age or commit.
func Annotate(item *models.DebtItem, entry vcs.BlameEntry, ok bool, age int) {
	if !ok {
		return
	}
	item.Author = entry.Author
	item.AgeInDays = models.IntPtr(age)
	item.LastCommit = entry.CommitHash
}
