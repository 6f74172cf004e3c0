package modelstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"babel-hq/rosetta/pkg/adapter"
)

// MemoryStore is an in-memory Store. Snapshots do not survive the process;
// it exists for tests and for wiring the caching layers without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*adapter.ListModelsResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]*adapter.ListModelsResult)}
}

// SaveSnapshot implements Store.
func (s *MemoryStore) SaveSnapshot(ctx context.Context, backend string, result *adapter.ListModelsResult) error {
	if backend == "" {
		return fmt.Errorf("backend name cannot be empty")
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[backend] = result.Clone()
	return nil
}

// LoadSnapshot implements Store.
func (s *MemoryStore) LoadSnapshot(ctx context.Context, backend string) (*adapter.ListModelsResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.snapshots[backend]
	if !ok {
		return nil, ErrNotFound
	}
	return result.Clone(), nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for backend, result := range s.snapshots {
		if result.FetchedAt.Before(cutoff) {
			delete(s.snapshots, backend)
			removed++
		}
	}
	return removed, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]*adapter.ListModelsResult)
	return nil
}
