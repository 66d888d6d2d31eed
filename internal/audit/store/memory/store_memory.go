package memory

import (
	"context"
	"sync"

	"corebank/internal/audit"
)

// InMemoryStore keeps audit records in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter audit.Filter) ([]audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Record
	for i := range s.records {
		if filter.Matches(&s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}
