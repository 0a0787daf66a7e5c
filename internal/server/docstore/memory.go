package docstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Put(_ context.Context, collection, key string, doc []byte) error {
	if err := validate(collection, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.docs[collection]
	if !ok {
		c = make(map[string][]byte)
		m.docs[collection] = c
	}
	c[key] = append([]byte(nil), doc...)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, collection, key string) ([]byte, error) {
	if err := validate(collection, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection][key]
	if !ok {
		return nil, notFound(collection, key)
	}
	return append([]byte(nil), doc...), nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]string, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.docs[collection]))
	for k := range m.docs[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, key string) error {
	if err := validate(collection, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs[collection], key)
	return nil
}
