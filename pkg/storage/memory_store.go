package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Backend keyed by Ref.Identifier(). Values are
// copied on the way in and out so callers cannot alias stored bytes.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string][]byte{}}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) ([]byte, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	value, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(value), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, value []byte) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[key] = cloneBytes(value)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, origin string) ([]string, error) {
	prefix := NormalizeOrigin(origin) + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for id := range s.records {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		rest := strings.TrimPrefix(id, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		keys = append(keys, rest)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len reports how many records are held across all origins.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
