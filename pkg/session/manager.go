// Package session tracks negotiation sessions in memory. Each session is
// driven by a single engine goroutine; a Handle mediates between that writer
// and concurrent readers.
package session

import (
	"errors"
	"sync"

	"github.com/parley-ai/parley/pkg/models"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Handle wraps one session. The engine goroutine mutates through Update;
// everyone else reads a Snapshot.
type Handle struct {
	mu   sync.Mutex
	sess *models.Session
}

// Update applies fn to the session under the handle's lock.
func (h *Handle) Update(fn func(*models.Session)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.sess)
}

// Snapshot returns a deep copy of the current session state.
func (h *Handle) Snapshot() *models.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.Clone()
}

// Manager holds every session, terminal ones included, so status queries keep
// working after completion.
type Manager struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{handles: make(map[string]*Handle)}
}

// Create registers a session and returns its handle.
func (m *Manager) Create(sess *models.Session) *Handle {
	h := &Handle{sess: sess}
	m.mu.Lock()
	m.handles[sess.ID] = h
	m.mu.Unlock()
	return h
}

// Get returns the handle for a session id.
func (m *Manager) Get(sessionID string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// Snapshot returns a deep copy of a session's current state.
func (m *Manager) Snapshot(sessionID string) (*models.Session, error) {
	h, err := m.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return h.Snapshot(), nil
}

// List returns snapshots of all sessions.
func (m *Manager) List() []*models.Session {
	m.mu.RLock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.RUnlock()

	out := make([]*models.Session, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Snapshot())
	}
	return out
}
