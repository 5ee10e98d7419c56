package storage

import "context"

// MemoryStore is an in-memory Store used by tests and the memory backend.
type MemoryStore struct {
	collections map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	data, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (m *MemoryStore) Set(_ context.Context, name string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.collections[name] = cp
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.collections = make(map[string][]byte)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
