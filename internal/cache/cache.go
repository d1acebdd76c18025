// Package cache persists structure verdicts keyed by table content hash.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/structure"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

const (
	// Version is bumped when the verdict format changes; older files are discarded.
	Version = 1
	// MaxEntries bounds the file; the oldest entries are evicted first.
	MaxEntries = 500
)

// Entry is one remembered verdict.
type Entry struct {
	Verdict structure.Verdict `json:"verdict"`
	SavedAt time.Time         `json:"saved_at"`
}

type file struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// Store is a JSON file of verdicts. Every write rewrites the file atomically.
type Store struct {
	mu   sync.Mutex
	path string
	data file
	now  func() time.Time
}

// Path returns the cache file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, "cache.json")
}

// Open loads the store at path. A missing file yields an empty store. An
// unreadable or incompatible file also yields an empty store, together with
// the error so the caller can report it.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: file{Version: Version, Entries: map[string]Entry{}}, now: time.Now}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read cache: %w", err)
	}
	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		return s, fmt.Errorf("parse cache %s: %w", path, err)
	}
	if f.Version != Version {
		return s, nil
	}
	if f.Entries != nil {
		s.data.Entries = f.Entries
	}
	return s, nil
}

// Get returns the verdict for key.
func (s *Store) Get(key string) (structure.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data.Entries[key]
	return e.Verdict, ok
}

// Put records v and saves the file.
func (s *Store) Put(key string, v structure.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Entries[key] = Entry{Verdict: v, SavedAt: s.now().UTC()}
	s.evict()
	return s.save()
}

// Delete removes key and saves the file when it was present.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Entries[key]; !ok {
		return nil
	}
	delete(s.data.Entries, key)
	return s.save()
}

// Clear drops every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Entries = map[string]Entry{}
	return s.save()
}

// Len is the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.Entries)
}

func (s *Store) evict() {
	over := len(s.data.Entries) - MaxEntries
	if over <= 0 {
		return
	}
	keys := make([]string, 0, len(s.data.Entries))
	for k := range s.data.Entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.data.Entries[keys[i]].SavedAt.Before(s.data.Entries[keys[j]].SavedAt)
	})
	for _, k := range keys[:over] {
		delete(s.data.Entries, k)
	}
}

func (s *Store) save() error {
	b, err := utils.PrettyJSON(s.data)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(s.path, b)
}
