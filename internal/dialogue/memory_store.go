package dialogue

import (
	"context"
	"sync"
	"time"
)

// MemoryStateStore keeps state in process memory.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]*State
	now    func() time.Time
}

var _ StateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*State), now: time.Now}
}

func (m *MemoryStateStore) Load(_ context.Context, conversationID string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[conversationID].Clone(), nil
}

func (m *MemoryStateStore) Save(_ context.Context, s *State) error {
	if s == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var current int64
	if existing, ok := m.states[s.ConversationID]; ok {
		current = existing.Version
	}
	if current != s.Version {
		return ErrStaleState
	}
	s.Version++
	s.UpdatedAt = m.now().UTC()
	m.states[s.ConversationID] = s.Clone()
	return nil
}

func (m *MemoryStateStore) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[conversationID]; !ok {
		return ErrStateNotFound
	}
	delete(m.states, conversationID)
	return nil
}
