// Package remote scans repositories that are not on the local filesystem by
// cloning them into a temporary workspace.
package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Source is a remote repository to scan.
type Source struct {
	URL      string // normalized git URL
	Ref      string // branch, tag, or SHA (empty = default branch)
	CloneDir string // temp directory after clone
}

// Parse detects if a path is a remote reference.
// Returns nil if path exists on filesystem (local path takes precedence).
func Parse(path string) (*Source, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, nil
	}

	// SSH URLs carry an @ before the host; only an @ in the last path
	// segment marks a ref.
	ref := ""
	if idx := strings.LastIndex(path, "@"); idx != -1 &&
		idx > strings.LastIndex(path, "/") && idx > strings.LastIndex(path, ":") {
		ref = path[idx+1:]
		path = path[:idx]
	}

	switch {
	case strings.HasPrefix(path, "https://"), strings.HasPrefix(path, "http://"),
		strings.HasPrefix(path, "ssh://"), strings.HasPrefix(path, "git@"):
		return &Source{URL: path, Ref: ref}, nil
	case strings.HasPrefix(path, "github.com/"), strings.HasPrefix(path, "gitlab.com/"),
		strings.HasPrefix(path, "bitbucket.org/"):
		return &Source{URL: "https://" + path, Ref: ref}, nil
	case isGitHubShorthand(path):
		return &Source{URL: "https://github.com/" + path, Ref: ref}, nil
	}
	return nil, nil
}

// isGitHubShorthand returns true if path matches owner/repo pattern.
func isGitHubShorthand(path string) bool {
	slashIdx := strings.Index(path, "/")
	if slashIdx == -1 {
		return false
	}
	if strings.Count(path, "/") != 1 {
		return false
	}
	// A dot before the slash is a domain or a relative path.
	if strings.Contains(path[:slashIdx], ".") {
		return false
	}
	return slashIdx > 0 && slashIdx < len(path)-1
}

// Clone clones the repository into a new temporary directory and checks out
// Ref. Shallow clones fetch only the tip commit, so ages and authors come
// from that commit alone. Progress is written to w.
func (s *Source) Clone(ctx context.Context, w io.Writer, shallow bool) error {
	dir, err := os.MkdirTemp("", "debtmap-clone-*")
	if err != nil {
		return fmt.Errorf("create clone directory: %w", err)
	}

	opts := &git.CloneOptions{URL: s.URL, Progress: w}
	if shallow {
		opts.Depth = 1
		if s.Ref != "" && !isHash(s.Ref) {
			opts.SingleBranch = true
			opts.ReferenceName = plumbing.NewBranchReferenceName(s.Ref)
		}
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil && shallow && opts.ReferenceName != "" {
		// The ref may be a tag rather than a branch.
		_ = os.RemoveAll(dir)
		if err = os.MkdirAll(dir, 0o755); err == nil {
			opts.ReferenceName = plumbing.NewTagReferenceName(s.Ref)
			repo, err = git.PlainCloneContext(ctx, dir, false, opts)
		}
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("clone %s: %w", s.URL, err)
	}
	s.CloneDir = dir

	if s.Ref == "" || opts.ReferenceName != "" {
		return nil
	}
	if err := checkout(repo, s.Ref); err != nil {
		s.Cleanup()
		return err
	}
	return nil
}

// checkout moves the worktree to ref, trying it as a local name, a remote
// branch and finally a commit hash.
func checkout(repo *git.Repository, ref string) error {
	candidates := []string{ref, "origin/" + ref, "refs/tags/" + ref}
	var hash *plumbing.Hash
	for _, c := range candidates {
		h, err := repo.ResolveRevision(plumbing.Revision(c))
		if err == nil {
			hash = h
			break
		}
	}
	if hash == nil {
		return fmt.Errorf("unknown ref %q", ref)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

func isHash(ref string) bool {
	if len(ref) < 7 || len(ref) > 40 {
		return false
	}
	for _, c := range ref {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// Cleanup removes the clone directory.
func (s *Source) Cleanup() {
	if s.CloneDir != "" {
		_ = os.RemoveAll(s.CloneDir)
		s.CloneDir = ""
	}
}
