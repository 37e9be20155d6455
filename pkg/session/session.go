// Package session owns the lifecycle of search sessions: creation, lookup,
// cooperative cancellation, and disposal. The registry is the only state
// shared across concurrent sessions; everything inside a Session belongs to
// the one orchestrator run driving it.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/incidentwire/incidentwire/pkg/dedupe"
	"github.com/incidentwire/incidentwire/pkg/types"
)

// State is the lifecycle state of a session. Terminal states are absorbing.
type State int32

const (
	// StateRunning is the only non-terminal state.
	StateRunning State = iota
	// StateCompleted means the session drained all admitted work normally.
	StateCompleted
	// StateCancelled means cancellation was requested and admitted work has
	// drained.
	StateCancelled
	// StateFailed means a session-fatal precondition was hit before any
	// work was attempted.
	StateFailed
)

// String returns the wire representation of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is one query's end-to-end run. The driving orchestrator is the
// only mutator of records; the cancellation flag and state are safe for
// concurrent reads from the cancel and snapshot endpoints.
type Session struct {
	ID        string
	Query     types.Query
	CreatedAt time.Time

	// Seen is the per-session deduplication set.
	Seen *dedupe.Set

	state           atomic.Int32
	cancelRequested atomic.Bool

	mu      sync.Mutex
	records []types.Record
}

func newSession(id string, q types.Query) *Session {
	return &Session{
		ID:        id,
		Query:     q,
		CreatedAt: time.Now().UTC(),
		Seen:      dedupe.NewSet(),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Terminal reports whether the session has reached an absorbing state.
func (s *Session) Terminal() bool {
	return s.State() != StateRunning
}

// MarkTerminal transitions Running -> st. It returns false when the session
// was already terminal; terminal states never change again.
func (s *Session) MarkTerminal(st State) bool {
	return s.state.CompareAndSwap(int32(StateRunning), int32(st))
}

// RequestCancel sets the cooperative cancellation flag. Idempotent; returns
// false when the session is already terminal, in which case the flag has no
// effect.
func (s *Session) RequestCancel() bool {
	if s.Terminal() {
		return false
	}
	s.cancelRequested.Store(true)
	return true
}

// CancelRequested is read by the orchestrator before admitting each new
// unit of work.
func (s *Session) CancelRequested() bool {
	return s.cancelRequested.Load()
}

// AppendRecord stores an emitted record and returns its completion-order
// index.
func (s *Session) AppendRecord(rec types.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return len(s.records) - 1
}

// Records returns a copy of the records accumulated so far.
func (s *Session) Records() []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Record, len(s.records))
	copy(out, s.records)
	return out
}

// RecordCount returns the number of records accumulated so far.
func (s *Session) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
