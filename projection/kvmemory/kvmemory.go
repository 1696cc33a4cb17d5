// Package kvmemory provides an in-memory projection KV adapter for tests and
// ephemeral deployments.
package kvmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chroniclehq/chronicle/projection"
)

// Store is a concurrency-safe in-memory projection KV.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ projection.KV = (*Store)(nil)

// New creates an empty in-memory KV.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, projection.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, ok := s.data[key]; ok {
			out[key] = append([]byte(nil), data...)
		}
	}
	return out, nil
}

func (s *Store) PutMany(ctx context.Context, entries []projection.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.data[e.Key] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, prefix string, limit int) ([]projection.Entry, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	entries := make([]projection.Entry, len(keys))
	for i, key := range keys {
		entries[i] = projection.Entry{Key: key, Value: append([]byte(nil), s.data[key]...)}
	}
	s.mu.RUnlock()
	return entries, nil
}

func (s *Store) Close() error { return nil }
