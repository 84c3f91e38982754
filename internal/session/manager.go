package session

import (
	"sync"

	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/storage"
)

// Manager wraps a storage.Store and fans out invalidation events to
// subscribers. All methods are safe for concurrent use.
type Manager struct {
	store storage.Store

	mu     sync.Mutex
	subs   map[int]chan Invalidation
	nextID int
}

// NewManager creates a session manager on top of the given store
func NewManager(store storage.Store) *Manager {
	return &Manager{
		store: store,
		subs:  make(map[int]chan Invalidation),
	}
}

// Handle returns a view of a single session's state
func (m *Manager) Handle(sessionID string) Handle {
	return Handle{m: m, sessionID: sessionID}
}

// Subscribe registers an invalidation listener. The returned cancel func
// removes the subscription and closes the channel. Events are dropped,
// not queued, if the subscriber falls behind.
func (m *Manager) Subscribe() (<-chan Invalidation, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Invalidation, 16)
	m.subs[id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (m *Manager) notify(ev Invalidation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			log.LogWarnWithFields("session", "Dropping invalidation event, subscriber not keeping up", map[string]interface{}{
				"session_id": ev.SessionID,
				"reason":     string(ev.Reason),
			})
		}
	}
}

// Close closes all subscriber channels
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
