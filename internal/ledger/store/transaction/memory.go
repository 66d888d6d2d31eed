package transaction

import (
	"context"
	"sync"
	"time"

	"corebank/internal/ledger/models"
	id "corebank/pkg/domain"
	"corebank/pkg/platform/sentinel"
)

// InMemory keeps transactions in insertion order. Resolve holds the store
// lock for the whole check-and-set, so a resolve and a cancel racing on the
// same pending row see exactly one winner.
type InMemory struct {
	mu    sync.RWMutex
	byID  map[id.TransactionID]*models.Transaction
	order []id.TransactionID
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.TransactionID]*models.Transaction)}
}

func (s *InMemory) Create(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[tx.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *tx
	s.byID[tx.ID] = &cp
	s.order = append(s.order, tx.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byID[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// Resolve transitions a pending transaction to a terminal status. The
// pending guard makes terminal states immutable: a second resolution (or a
// lost cancel race) observes ErrInvalidState.
func (s *InMemory) Resolve(_ context.Context, txID id.TransactionID, status models.TransactionStatus, reason string, resolvedAt time.Time) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if tx.Status != models.TransactionStatusPending {
		return nil, sentinel.ErrInvalidState
	}
	switch status {
	case models.TransactionStatusCompleted:
		tx.ApplyCompletion(resolvedAt)
	case models.TransactionStatusCancelled:
		tx.ApplyCancellation(resolvedAt, reason)
	default:
		return nil, sentinel.ErrInvalidState
	}
	cp := *tx
	return &cp, nil
}

// List returns matching transactions in insertion order.
func (s *InMemory) List(_ context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, txID := range s.order {
		tx := s.byID[txID]
		if filter.Matches(tx) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}
