// Package dedupe provides the per-session seen-identifier set that keeps the
// same canonical resource, discovered through different source queries, from
// reaching the extraction pool more than once.
package dedupe

import "sync"

// Set records canonical identifiers seen during one search session. It is
// scoped to a single session, never shared across sessions.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Accept returns true and records id the first time it is seen, false on
// every later call. Safe for concurrent use; the lock is held only for the
// map mutation.
func (s *Set) Accept(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Len returns the number of unique identifiers accepted so far.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
