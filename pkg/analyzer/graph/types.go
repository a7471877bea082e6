package graph

import (
	"path"
	"strings"
)

// Edge is one import of To by From. Both are workspace-relative paths.
type Edge struct {
	From string `json:"from" toon:"from"`
	To   string `json:"to" toon:"to"`
}

// DefaultExtension is appended to import targets that have none.
const DefaultExtension = ".ts"

// scriptExtensions are the files whose imports are extracted.
var scriptExtensions = map[string]bool{
	".js":     true,
	".jsx":    true,
	".mjs":    true,
	".cjs":    true,
	".ts":     true,
	".tsx":    true,
	".mts":    true,
	".cts":    true,
	".vue":    true,
	".svelte": true,
}

// IsScript reports whether imports are extracted from p.
func IsScript(p string) bool {
	return scriptExtensions[strings.ToLower(path.Ext(p))]
}

// Resolve maps an import target written in importer to a workspace-relative
// path. Only relative targets resolve; targets that leave the workspace do not.
func Resolve(importer, target string) (string, bool) {
	if !strings.HasPrefix(target, "./") && !strings.HasPrefix(target, "../") {
		return "", false
	}
	resolved := path.Join(path.Dir(importer), target)
	if resolved == ".." || strings.HasPrefix(resolved, "../") || resolved == "." {
		return "", false
	}
	if path.Ext(resolved) == "" {
		resolved += DefaultExtension
	}
	return resolved, true
}
