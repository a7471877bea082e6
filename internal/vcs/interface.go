// Package vcs provides version control system abstractions.
package vcs

import (
	"context"
	"errors"
)

var (
	// ErrNoHistory is returned when a file has no commits.
	ErrNoHistory = errors.New("no commit history")

	// ErrGitNotFound is returned when the git binary is not on PATH.
	ErrGitNotFound = errors.New("git executable not found")
)

// Repository provides the repository-level queries the scanner needs.
type Repository interface {
	// HeadHash returns the full hash of the HEAD commit.
	HeadHash() (string, error)
	// RepoPath returns the root path of the repository worktree.
	RepoPath() string
}

// Opener opens git repositories.
type Opener interface {
	// PlainOpenWithDetect opens a git repository, detecting .git in parent directories.
	PlainOpenWithDetect(path string) (Repository, error)
}

// CommandRunner runs git with args inside dir and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// BlameStore is a second-level blame cache that survives the process.
type BlameStore interface {
	Get(file, commitSHA string) ([]BlameEntry, bool)
	Put(file, commitSHA string, entries []BlameEntry) error
	Clear() error
}
