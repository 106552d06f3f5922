package auth

import "sync"

// MemoryStore keeps sessions in memory. It backs tests and dry runs.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	// error injection for tests
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session == nil || session.Label == "" {
		return ErrInvalidSession
	}

	sessionCopy := *session
	m.sessions[session.Label] = &sessionCopy
	return nil
}

func (m *MemoryStore) Retrieve(label string) (*Session, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if label == "" {
		return nil, ErrInvalidSession
	}

	session, exists := m.sessions[label]
	if !exists {
		return nil, ErrSessionNotFound
	}

	sessionCopy := *session
	return &sessionCopy, nil
}

func (m *MemoryStore) List() ([]*Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessionCopy := *session
		sessions = append(sessions, &sessionCopy)
	}
	return sessions, nil
}

func (m *MemoryStore) Delete(label string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[label]; !exists {
		return ErrSessionNotFound
	}
	delete(m.sessions, label)
	return nil
}

func (m *MemoryStore) Exists(label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.sessions[label]
	return exists
}
