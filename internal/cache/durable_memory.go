package cache

import (
	"context"
	"sync"
)

// MemoryDurable implements DurableScope in process memory.
type MemoryDurable struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryDurable creates an empty in-memory durable scope.
func NewMemoryDurable() *MemoryDurable {
	return &MemoryDurable{entries: make(map[string][]byte)}
}

// Get returns the stored value for key.
func (m *MemoryDurable) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores value under key.
func (m *MemoryDurable) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key.
func (m *MemoryDurable) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

var _ DurableScope = (*MemoryDurable)(nil)
