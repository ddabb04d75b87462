package inmemory

import (
	"slices"
	"sync"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
)

// KVStore is a process-local storage.Store.
type KVStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewKVStore() *KVStore {
	return &KVStore{values: make(map[string][]byte)}
}

func (s *KVStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

func (s *KVStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = slices.Clone(value)
	return nil
}

func (s *KVStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *KVStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
