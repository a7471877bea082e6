// Package source reads file content for the analyzers.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrBinary is returned for content that looks like a binary file.
var ErrBinary = errors.New("binary file")

// File is a discovered candidate file.
type File struct {
	// Path is workspace-relative with forward slashes.
	Path string
	// Abs is the absolute filesystem path.
	Abs string
}

// NewFile builds a File for rel under root.
func NewFile(root, rel string) File {
	rel = filepath.ToSlash(rel)
	return File{Path: rel, Abs: filepath.Join(root, filepath.FromSlash(rel))}
}

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultCacheSize is the number of files CachedSource keeps.
const DefaultCacheSize = 1024

// CachedSource keeps recently read files in an LRU so that analyzers
// visiting the same file in one scan read it from disk once.
// It is safe for concurrent use.
type CachedSource struct {
	src   ContentSource
	cache *lru.Cache[string, []byte]
}

// NewCached wraps src with an LRU of size entries.
func NewCached(src ContentSource, size int) *CachedSource {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New[string, []byte](size)
	return &CachedSource{src: src, cache: c}
}

// Read implements ContentSource. Errors are not cached.
func (c *CachedSource) Read(path string) ([]byte, error) {
	if data, ok := c.cache.Get(path); ok {
		return data, nil
	}
	data, err := c.src.Read(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, data)
	return data, nil
}

// Purge empties the cache.
func (c *CachedSource) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached files.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}

// sniffLen matches git's binary detection window.
const sniffLen = 8000

// IsBinary reports whether data contains a NUL byte near the start.
func IsBinary(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) >= 0
}

// ReadText reads f from src and rejects binary content.
func ReadText(src ContentSource, f File) ([]byte, error) {
	data, err := src.Read(f.Abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	if IsBinary(data) {
		return nil, fmt.Errorf("read %s: %w", f.Path, ErrBinary)
	}
	return data, nil
}
