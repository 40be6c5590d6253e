// Package session issues the opaque per-editor handles that backends key
// their auth state by. The core never stores credentials here; a session is
// an id with a sliding expiry, nothing more.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the sliding session lifetime when the config does not set one.
const DefaultTTL = 24 * time.Hour

// Session is an opaque per-editor handle.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Key returns the identifier backends use to index per-session state. A nil
// session maps to the anonymous key.
func (s *Session) Key() string {
	if s == nil {
		return ""
	}
	return s.ID
}

// Manager mints and tracks sessions in memory.
type Manager struct {
	mu   sync.Mutex
	ttl  time.Duration
	byID map[string]Session

	now func() time.Time
}

// NewManager returns a manager with the given sliding TTL; zero or negative
// falls back to DefaultTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		ttl:  ttl,
		byID: make(map[string]Session),
		now:  time.Now,
	}
}

// Create mints a fresh session.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.byID[s.ID] = s
	return &s
}

// Get returns the session with the given id, renewing its expiry. Expired
// and unknown ids both return nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return nil
	}
	now := m.now()
	if now.After(s.ExpiresAt) {
		delete(m.byID, id)
		return nil
	}
	s.ExpiresAt = now.Add(m.ttl)
	m.byID[id] = s
	return &s
}

// Destroy removes a session. Unknown ids are a no-op.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

// Sweep evicts expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.byID {
		if now.After(s.ExpiresAt) {
			delete(m.byID, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
