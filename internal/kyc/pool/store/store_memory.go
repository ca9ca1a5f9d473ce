package store

import (
	"context"
	"sync"

	"presale/internal/kyc"
	"presale/internal/kyc/pool"
	"presale/pkg/platform/sentinel"
)

// InMemoryStore keeps pool records in insertion order behind a mutex. The
// mutex is the serialisation point for AssignNext.
type InMemoryStore struct {
	mu      sync.Mutex
	records []pool.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Reserved(_ context.Context) (kyc.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return "", sentinel.ErrNotFound
	}
	return s.records[0].Address, nil
}

func (s *InMemoryStore) AssignNext(_ context.Context) (kyc.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Index 0 is the reserved sentinel regardless of its used flag.
	for i := 1; i < len(s.records); i++ {
		if !s.records[i].Used {
			s.records[i].Used = true
			return s.records[i].Address, nil
		}
	}
	return "", sentinel.ErrExhausted
}

func (s *InMemoryStore) Append(_ context.Context, addresses []kyc.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := int64(len(s.records)) + 1
	for i, addr := range addresses {
		s.records = append(s.records, pool.Record{
			ID:      next + int64(i),
			Address: addr,
			Used:    i == 0,
		})
	}
	return nil
}

func (s *InMemoryStore) Records(_ context.Context) ([]pool.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pool.Record{}, s.records...), nil
}

func (s *InMemoryStore) Stats(_ context.Context) (pool.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := pool.Stats{Total: len(s.records)}
	for i := 1; i < len(s.records); i++ {
		if !s.records[i].Used {
			st.Available++
		}
	}
	return st, nil
}
