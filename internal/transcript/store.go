package transcript

import (
	"strings"
	"sync"
)

// Store accumulates recognized text per call identifier. Appends to the same
// key are linearized; entries outlive the owning session until taken by the
// call-completion path.
type Store struct {
	mu      sync.Mutex
	entries map[string]*strings.Builder
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*strings.Builder)}
}

// Append adds text to the entry for key, creating the entry if needed.
// A single trailing space separates successive appends.
func (s *Store) Append(key, text string) {
	text = strings.TrimSpace(text)
	if key == "" || text == "" {
		return
	}
	s.mu.Lock()
	b, ok := s.entries[key]
	if !ok {
		b = &strings.Builder{}
		s.entries[key] = b
	}
	b.WriteString(text)
	b.WriteString(" ")
	s.mu.Unlock()
}

// Peek returns the accumulated text for key without removing it.
func (s *Store) Peek(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.entries[key]; ok {
		return strings.TrimSpace(b.String())
	}
	return ""
}

// Take returns the accumulated text for key and evicts the entry. Eviction on
// consumption keeps long-running processes from growing without bound.
func (s *Store) Take(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[key]
	if !ok {
		return ""
	}
	delete(s.entries, key)
	return strings.TrimSpace(b.String())
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
