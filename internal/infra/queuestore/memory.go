package queuestore

import (
	"context"
	"sort"
	"sync"

	"github.com/spoolhouse/sqlspool/internal/core/domain"
)

// MemoryStore is an in-process queue index. It is the default backing when
// no Redis URL is configured; entries do not survive a restart (the
// degradation service re-indexes from the queue folder at startup).
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]map[string]domain.QueuedFile // configName -> id -> entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]domain.QueuedFile)}
}

func (s *MemoryStore) Add(ctx context.Context, entry domain.QueuedFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.entries[entry.ConfigName]
	if !ok {
		byID = make(map[string]domain.QueuedFile)
		s.entries[entry.ConfigName] = byID
	}
	byID[entry.ID] = entry
	return nil
}

func (s *MemoryStore) List(ctx context.Context, configName string) ([]domain.QueuedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.entries[configName]
	out := make([]domain.QueuedFile, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedAt.Before(out[j].QueuedAt) })
	return out, nil
}

func (s *MemoryStore) Remove(ctx context.Context, configName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byID, ok := s.entries[configName]; ok {
		delete(byID, id)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
