package cache

import (
	"encoding/json"
	"path/filepath"

	"github.com/panbanda/debtmap/internal/vcs"
)

// BlameStore adapts a Cache to vcs.BlameStore. Entries are keyed by
// (commit, path) and validated against the current file content.
type BlameStore struct {
	cache *Cache
	root  string
}

// NewBlameStore creates a store for files under root.
func NewBlameStore(c *Cache, root string) *BlameStore {
	return &BlameStore{cache: c, root: root}
}

func blameKey(file, commitSHA string) string {
	return "blame\x00" + commitSHA + "\x00" + filepath.ToSlash(file)
}

// Get returns cached blame for file at commitSHA.
func (s *BlameStore) Get(file, commitSHA string) ([]vcs.BlameEntry, bool) {
	hash, err := HashFile(filepath.Join(s.root, file))
	if err != nil {
		return nil, false
	}
	key := blameKey(file, commitSHA)
	data, ok := s.cache.Get(key, hash)
	if !ok {
		return nil, false
	}
	var entries []vcs.BlameEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		_ = s.cache.Invalidate(key)
		return nil, false
	}
	if entries == nil {
		entries = []vcs.BlameEntry{}
	}
	return entries, true
}

// Put stores blame for file at commitSHA.
func (s *BlameStore) Put(file, commitSHA string, entries []vcs.BlameEntry) error {
	hash, err := HashFile(filepath.Join(s.root, file))
	if err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.cache.Set(blameKey(file, commitSHA), hash, data)
}

// Clear removes every cached entry.
func (s *BlameStore) Clear() error {
	return s.cache.Clear()
}
