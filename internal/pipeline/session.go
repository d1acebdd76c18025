package pipeline

import (
	"sync"

	"github.com/KaramelBytes/dataloom-cli/internal/structure"
)

// VerdictStore persists verdicts across sessions, keyed by table content hash.
type VerdictStore interface {
	Get(key string) (structure.Verdict, bool)
	Put(key string, v structure.Verdict) error
	Delete(key string) error
}

// Session memoizes verdicts for one caller. It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	verdicts map[string]structure.Verdict
	store    VerdictStore
}

// NewSession returns a session backed by store, which may be nil.
func NewSession(store VerdictStore) *Session {
	return &Session{verdicts: map[string]structure.Verdict{}, store: store}
}

// Verdict returns the remembered verdict for key, checking the store on a miss.
func (s *Session) Verdict(key string) (structure.Verdict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.verdicts[key]; ok {
		return v, true
	}
	if s.store == nil {
		return structure.Verdict{}, false
	}
	v, ok := s.store.Get(key)
	if ok {
		s.verdicts[key] = v
	}
	return v, ok
}

// Remember records v for key in memory and in the store.
func (s *Session) Remember(key string, v structure.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[key] = v
	if s.store == nil {
		return nil
	}
	return s.store.Put(key, v)
}

// Forget drops key from memory and from the store.
func (s *Session) Forget(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verdicts, key)
	if s.store == nil {
		return nil
	}
	return s.store.Delete(key)
}

// Len is the number of verdicts held in memory.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.verdicts)
}
