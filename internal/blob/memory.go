package blob

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

const memoryScheme = "memory://"

// MemoryStore is an in-process Store. References look like memory://<key>.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func memoryKey(ref string) string {
	return strings.TrimPrefix(strings.TrimPrefix(ref, memoryScheme), "/")
}

// Put stores data under ref as given, which lets tests register arbitrary URLs.
func (m *MemoryStore) Put(ref string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[memoryKey(ref)] = slices.Clone(data)
}

func (m *MemoryStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[memoryKey(ref)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return slices.Clone(data), nil
}

func (m *MemoryStore) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.Put(key, data)
	return memoryScheme + key, nil
}

func (m *MemoryStore) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(ref)
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	delete(m.objects, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
