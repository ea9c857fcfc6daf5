package session

import "sync"

// Store holds live and recently ended sessions. It has an explicit
// lifecycle (create, lookup, remove) and is passed into the Manager
// rather than accessed as ambient global state.
type Store interface {
	Create(s *Session)
	Lookup(id string) (*Session, bool)
	Remove(id string)
	ActiveCount() int
}

// MemoryStore is the in-process Store used in production: sessions are
// transient by design and durably recorded through the event sink.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Create registers a session under its id.
func (m *MemoryStore) Create(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

// Lookup returns the session with the given id.
func (m *MemoryStore) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove deletes the session with the given id. Removing an unknown id
// is a no-op.
func (m *MemoryStore) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// ActiveCount returns the number of sessions still in the active status.
func (m *MemoryStore) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		s.mu.Lock()
		if s.Status == StatusActive {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

// ActiveIDs returns the ids of all sessions still in the active status.
// Used at shutdown to close out calls that never ended.
func (m *MemoryStore) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, s := range m.sessions {
		s.mu.Lock()
		if s.Status == StatusActive {
			ids = append(ids, id)
		}
		s.mu.Unlock()
	}
	return ids
}

// Ensure MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)
