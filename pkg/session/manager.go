package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/incidentwire/incidentwire/pkg/types"
)

// ErrNotFound is returned for lookups on unknown or disposed session ids.
var ErrNotFound = errors.New("session: not found")

// CancelStatus describes the outcome of a cancellation request.
type CancelStatus int

const (
	// CancelAccepted means the flag was set on a running session.
	CancelAccepted CancelStatus = iota
	// CancelAlreadyTerminal means the session had already finished.
	CancelAlreadyTerminal
)

// CancelResult is returned to the cancel endpoint.
type CancelResult struct {
	Status       CancelStatus
	RecordsSoFar int
}

// Manager is the concurrency-safe session registry. It is constructor
// injected everywhere it is needed, never a process-wide singleton.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *slog.Logger
}

// NewManager creates an empty registry.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Create allocates a new running session and registers it.
func (m *Manager) Create(q types.Query) *Session {
	sess := newSession(uuid.NewString(), q)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.log.Info("session created", "session_id", sess.ID, "phrase", q.Phrase)
	return sess
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// RequestCancel sets the cancellation flag on a running session. It does not
// block on in-flight work and is safe to call repeatedly or after the
// session has terminated.
func (m *Manager) RequestCancel(id string) (CancelResult, error) {
	sess, err := m.Get(id)
	if err != nil {
		return CancelResult{}, err
	}

	result := CancelResult{RecordsSoFar: sess.RecordCount()}
	if sess.RequestCancel() {
		result.Status = CancelAccepted
		m.log.Info("session cancel requested", "session_id", id)
	} else {
		result.Status = CancelAlreadyTerminal
	}
	return result, nil
}

// Dispose removes a session from the registry once the client has drained
// its stream. Long-lived registries leak without this.
func (m *Manager) Dispose(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
