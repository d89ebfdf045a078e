package store

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for tests and ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]Value
	saves  int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]Value),
	}
}

// Load retrieves a single value by key.
func (m *MemoryStore) Load(ctx context.Context, key string) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, exists := m.values[key]
	if !exists {
		return Value{}, ErrNotFound
	}
	return v, nil
}

// Save overwrites the value for key.
func (m *MemoryStore) Save(ctx context.Context, key string, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = v
	m.saves++
	return nil
}

// LoadAll returns a copy of every stored value.
func (m *MemoryStore) LoadAll(ctx context.Context) (map[string]Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return maps.Clone(m.values), nil
}

// Saves returns how many Save calls reached the store. Tests use it to assert
// that rejected edits never touched persistence.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}
