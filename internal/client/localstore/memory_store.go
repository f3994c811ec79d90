package localstore

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore implements Store in memory. Instances sharing one MemoryStore
// see each other's writes.
type MemoryStore struct {
	m      sync.RWMutex
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)} //nolint:exhaustruct
}

// MemoryStoreFactory returns a factory handing out the same MemoryStore.
func MemoryStoreFactory(store *MemoryStore) StoreFactory {
	return func(context.Context) (Store, error) {
		return store, nil
	}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	value, ok := s.values[key]

	return value, ok, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.m.Lock()
	defer s.m.Unlock()

	s.values[key] = value

	return nil
}

// Remove implements Store.Remove.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.m.Lock()
	defer s.m.Unlock()

	delete(s.values, key)

	return nil
}

// Keys implements Store.Keys.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.m.RLock()
	defer s.m.RUnlock()

	keys := make([]string, 0)

	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	return keys, nil
}

// RemovePrefix implements Store.RemovePrefix.
func (s *MemoryStore) RemovePrefix(_ context.Context, prefix string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()

	removed := 0

	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
			removed++
		}
	}

	return removed, nil
}

// Close implements Store.Close. The values are kept.
func (s *MemoryStore) Close() error {
	return nil
}
