package store

import (
	"context"
	"sync"

	"presale/internal/kyc"
	"presale/pkg/platform/sentinel"
)

// InMemoryStore keeps participant rows in insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	rows  []kyc.ParticipantRecord
	byTID map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTID: make(map[string]int)}
}

func (s *InMemoryStore) Record(_ context.Context, rec *kyc.ParticipantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byTID[rec.TransactionID]; exists {
		return sentinel.ErrConflict
	}
	s.byTID[rec.TransactionID] = len(s.rows)
	s.rows = append(s.rows, *rec)
	return nil
}

func (s *InMemoryStore) FindByTransactionID(_ context.Context, transactionID string) (*kyc.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byTID[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	rec := s.rows[idx]
	return &rec, nil
}

func (s *InMemoryStore) FindBySubmitter(_ context.Context, submitterID string) (*kyc.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].SubmitterID == submitterID {
			rec := s.rows[i]
			return &rec, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Len reports how many rows have been recorded.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
