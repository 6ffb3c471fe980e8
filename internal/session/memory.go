package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Values are copied on the way
// in and out, callers never share a State with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*State
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*State),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[chatID].Clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, chatID int64, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := state.Clone()
	c.UpdatedAt = m.now()
	m.sessions[chatID] = c
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

// Sweep drops sessions not touched for longer than idle
func (m *MemoryStore) Sweep(_ context.Context, idle time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-idle)
	removed := 0
	for chatID, state := range m.sessions {
		if state.UpdatedAt.Before(cutoff) {
			delete(m.sessions, chatID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
