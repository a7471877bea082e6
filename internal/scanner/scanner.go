// Package scanner discovers candidate source files in a workspace.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/debtmap/pkg/config"
	"github.com/panbanda/debtmap/pkg/source"
)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// ScanError wraps a failure to walk the workspace.
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// DefaultExtensions are the file extensions considered source code.
var DefaultExtensions = []string{
	".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs",
	".java", ".go", ".c", ".h", ".cpp", ".cc", ".hpp", ".cs",
	".rs", ".php", ".kt", ".swift", ".scala", ".dart",
	".py", ".rb", ".vue", ".svelte", ".lua", ".sh",
}

// DefaultExcludeDirs are skipped wherever they appear.
var DefaultExcludeDirs = []string{
	".git", "node_modules", "vendor", "dist", "build", "out",
	"coverage", "target", ".next", ".debtmap",
}

// Result is the outcome of a directory scan.
type Result struct {
	// Files are sorted by path and truncated to the configured maximum.
	Files []source.File
	// Total is the number of candidates before truncation.
	Total int
}

// Truncated reports whether candidates were dropped.
func (r *Result) Truncated() bool {
	return r.Total > len(r.Files)
}

// Scanner finds source files in a directory.
type Scanner struct {
	extensions map[string]bool
	excludes   []string
	maxFiles   int
	gitignore  bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions replaces the extension allow-list.
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			s.extensions[strings.ToLower(e)] = true
		}
	}
}

// WithoutGitignore disables .gitignore handling.
func WithoutGitignore() Option {
	return func(s *Scanner) {
		s.gitignore = false
	}
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config, opts ...Option) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{
		excludes:  append([]string(nil), cfg.ExcludeGlobs...),
		maxFiles:  cfg.MaxFilesToScan,
		gitignore: true,
	}
	WithExtensions(DefaultExtensions...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// matchers evaluates exclusions for paths relative to the scan root.
type matchers struct {
	config    gitignore.Matcher
	git       gitignore.Matcher
	gitPrefix []string // scan root relative to the git root
}

func (m *matchers) excluded(rel string, isDir bool) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if m.config != nil && m.config.Match(parts, isDir) {
		return true
	}
	if m.git != nil {
		full := append(append([]string(nil), m.gitPrefix...), parts...)
		if m.git.Match(full, isDir) {
			return true
		}
	}
	return false
}

func (s *Scanner) loadMatchers(root string) *matchers {
	m := &matchers{}

	var patterns []gitignore.Pattern
	for _, dir := range DefaultExcludeDirs {
		patterns = append(patterns, gitignore.ParsePattern(dir+"/", nil))
	}
	for _, p := range s.excludes {
		if strings.TrimSpace(p) == "" {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	m.config = gitignore.NewMatcher(patterns)

	if !s.gitignore {
		return m
	}
	gitRoot := findGitRoot(root)
	if gitRoot == "" {
		gitRoot = root
	}
	gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil)
	if err != nil || len(gitPatterns) == 0 {
		return m
	}
	m.git = gitignore.NewMatcher(gitPatterns)
	if rel, err := filepath.Rel(gitRoot, root); err == nil && rel != "." {
		m.gitPrefix = strings.Split(filepath.ToSlash(rel), "/")
	}
	return m
}

// findGitRoot finds the root of the git repository by looking for .git.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ScanDir walks root and returns candidate files sorted by relative path,
// prefix-truncated to the configured maximum.
func (s *Scanner) ScanDir(root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: root, Err: ErrNotDirectory}
	}

	m := s.loadMatchers(absRoot)
	var rels []string

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if path == absRoot {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
			target, err := os.Stat(resolved)
			if err != nil || target.IsDir() {
				return nil
			}
		}

		if d.IsDir() {
			if m.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.excluded(rel, false) {
			return nil
		}
		if s.extensions[strings.ToLower(filepath.Ext(path))] {
			rels = append(rels, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return nil, &ScanError{Root: root, Err: walkErr}
	}

	sort.Strings(rels)
	res := &Result{Total: len(rels)}
	if s.maxFiles > 0 && len(rels) > s.maxFiles {
		rels = rels[:s.maxFiles]
	}
	res.Files = make([]source.File, len(rels))
	for i, rel := range rels {
		res.Files[i] = source.NewFile(absRoot, rel)
	}
	return res, nil
}

// Filter applies a scanner's exclusion and extension rules to individual
// paths relative to one root.
type Filter struct {
	s *Scanner
	m *matchers
}

// Filter builds a Filter for root.
func (s *Scanner) Filter(root string) *Filter {
	return &Filter{s: s, m: s.loadMatchers(root)}
}

// SkipDir reports whether the directory rel is excluded.
func (f *Filter) SkipDir(rel string) bool {
	return f.m.excluded(rel, true)
}

// Match reports whether the file rel would be scanned.
func (f *Filter) Match(rel string) bool {
	if f.m.excluded(rel, false) {
		return false
	}
	return f.s.extensions[strings.ToLower(filepath.Ext(rel))]
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
