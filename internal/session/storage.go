package session

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Storage persists session state per visitor.
type Storage interface {
	Load(ctx context.Context, visitorID string) (State, error)
	Save(ctx context.Context, visitorID string, state State) error
	Delete(ctx context.Context, visitorID string) error
}

type MemoryStorage struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{states: make(map[string]State)}
}

func (m *MemoryStorage) Load(_ context.Context, visitorID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[visitorID]
	if !ok {
		return State{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStorage) Save(_ context.Context, visitorID string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[visitorID] = state
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, visitorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, visitorID)
	return nil
}
