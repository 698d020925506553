package storage

import (
	"context"
	"sync"
)

// MemoryKV is an in-process KV. Values are copied on the way in and out.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV returns an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (m *MemoryKV) PutAll(_ context.Context, items ...Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range items {
		m.data[item.Key] = append([]byte(nil), item.Value...)
	}
	return nil
}
