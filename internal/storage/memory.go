package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory session store for development and tests.
// State does not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]map[string]string),
	}
}

// Get implements Store.Get
func (m *MemoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrKeyNotFound
	}
	value, ok := session[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set implements Store.Set
func (m *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		session = make(map[string]string)
		m.sessions[sessionID] = session
	}
	session[key] = value
	return nil
}

// Delete implements Store.Delete
func (m *MemoryStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	for _, key := range keys {
		delete(session, key)
	}
	if len(session) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}

// Clear implements Store.Clear
func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

// Close implements Store.Close
func (m *MemoryStore) Close() error {
	return nil
}
