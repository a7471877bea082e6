// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/panbanda/debtmap/internal/vcs"
)

// WriteFile writes content to a file in the real filesystem.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// CreateFileTree creates multiple files from a map of path -> content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(name)), content)
	}
}

// InitRepo creates a git repository at dir and commits files with the given
// author time. It returns the commit hash.
func InitRepo(t *testing.T, dir string, files map[string]string, when time.Time) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit(%s) error: %v", dir, err)
	}
	return Commit(t, repo, dir, files, when)
}

// Commit writes files into the worktree of repo and commits them.
func Commit(t *testing.T, repo *git.Repository, dir string, files map[string]string, when time.Time) string {
	t.Helper()
	CreateFileTree(t, dir, files)
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error: %v", err)
	}
	for name := range files {
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("Add(%s) error: %v", name, err)
		}
	}
	sig := &object.Signature{Name: "Dev", Email: "dev@example.com", When: when}
	hash, err := wt.Commit("commit", &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	return hash.String()
}

// BlameLine describes one committed line for Porcelain.
type BlameLine struct {
	Line   int
	Hash   string
	Author string
	When   time.Time
}

// Porcelain renders lines as `git blame --porcelain` output.
func Porcelain(lines ...BlameLine) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, l := range lines {
		fmt.Fprintf(&b, "%s %d %d 1\n", l.Hash, l.Line, l.Line)
		if !seen[l.Hash] {
			seen[l.Hash] = true
			fmt.Fprintf(&b, "author %s\n", l.Author)
			fmt.Fprintf(&b, "author-mail <%s@example.com>\n", strings.ToLower(l.Author))
			fmt.Fprintf(&b, "author-time %d\n", l.When.Unix())
			b.WriteString("author-tz +0000\nsummary fixture\n")
		}
		b.WriteString("filename fixture\n\tline\n")
	}
	return b.String()
}

// Hash returns a 40-hex commit hash built from a single repeated digit.
func Hash(digit byte) string {
	return strings.Repeat(string(digit), 40)
}

// FakeGit is a vcs.CommandRunner that answers blame and log queries from
// fixtures. Unknown queries fail like git does for untracked paths.
type FakeGit struct {
	mu     sync.Mutex
	blame  map[string]string
	log    map[string]string
	failed map[string]error
	Calls  atomic.Int32
}

// NewFakeGit creates an empty FakeGit.
func NewFakeGit() *FakeGit {
	return &FakeGit{
		blame:  make(map[string]string),
		log:    make(map[string]string),
		failed: make(map[string]error),
	}
}

// SetBlame registers porcelain output for file.
func (f *FakeGit) SetBlame(file, porcelain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blame[file] = porcelain
}

// SetLastCommit registers the last commit of file.
func (f *FakeGit) SetLastCommit(file, hash string, when time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log[file] = hash + "|" + when.UTC().Format(time.RFC3339) + "\n"
}

// FailLog makes the log query for file fail with err.
func (f *FakeGit) FailLog(file string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[file] = err
}

// Run implements vcs.CommandRunner.
func (f *FakeGit) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.Calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	file := args[len(args)-1]
	switch args[0] {
	case "blame":
		if out, ok := f.blame[file]; ok {
			return []byte(out), nil
		}
	case "log":
		if err, ok := f.failed[file]; ok {
			return nil, err
		}
		if out, ok := f.log[file]; ok {
			return []byte(out), nil
		}
		return []byte{}, nil
	}
	return nil, &vcs.CommandError{Args: args, Stderr: "fatal: no such path '" + file + "' in HEAD", Err: fmt.Errorf("exit status 128")}
}

// RepoOpener is a vcs.Opener reporting a repository with a fixed HEAD.
type RepoOpener struct {
	Head string
}

// PlainOpenWithDetect implements vcs.Opener.
func (o RepoOpener) PlainOpenWithDetect(path string) (vcs.Repository, error) {
	return fakeRepo{head: o.Head, root: path}, nil
}

type fakeRepo struct {
	head string
	root string
}

func (r fakeRepo) HeadHash() (string, error) {
	if r.head == "" {
		return "", fmt.Errorf("reference not found")
	}
	return r.head, nil
}

func (r fakeRepo) RepoPath() string { return r.root }

// NoRepoOpener is a vcs.Opener for workspaces outside version control.
type NoRepoOpener struct{}

// PlainOpenWithDetect implements vcs.Opener.
func (NoRepoOpener) PlainOpenWithDetect(string) (vcs.Repository, error) {
	return nil, git.ErrRepositoryNotExists
}

// FakeHistory builds a vcs.History over FakeGit with a repository at HEAD head.
func FakeHistory(root, head string, fake *FakeGit) *vcs.History {
	return vcs.NewHistory(root,
		vcs.WithOpener(RepoOpener{Head: head}),
		vcs.WithRunner(fake),
		vcs.WithRetryBudget(1, time.Second),
	)
}

// DaysAgo returns now minus n days.
func DaysAgo(now time.Time, n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}
