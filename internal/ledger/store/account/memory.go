package account

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"corebank/internal/ledger/models"
	id "corebank/pkg/domain"
	"corebank/pkg/platform/sentinel"
)

// InMemory keeps accounts in process. Balance mutation is serialized per
// account through an entry mutex, so deltas are atomic relative to all other
// mutations on the same account without a global write lock.
type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]*entry
	byNumber map[string]id.AccountID
}

type entry struct {
	mu      sync.Mutex
	account models.Account
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[id.AccountID]*entry),
		byNumber: make(map[string]id.AccountID),
	}
}

// Create stores a new account, enforcing number uniqueness.
func (s *InMemory) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byNumber[account.Number]; exists {
		return sentinel.ErrConflict
	}
	s.accounts[account.ID] = &entry{account: *account}
	s.byNumber[account.Number] = account.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	e := s.lookup(accountID)
	if e == nil {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := e.account
	return &cp, nil
}

func (s *InMemory) FindByNumber(ctx context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	accountID, ok := s.byNumber[number]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, accountID)
}

func (s *InMemory) ListByOwner(_ context.Context, ownerID id.UserID) ([]*models.Account, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.accounts))
	for _, e := range s.accounts {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []*models.Account
	for _, e := range entries {
		e.mu.Lock()
		if e.account.OwnedBy(ownerID) {
			cp := e.account
			out = append(out, &cp)
		}
		e.mu.Unlock()
	}
	return out, nil
}

// SetStatus updates the account lifecycle state.
func (s *InMemory) SetStatus(_ context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) error {
	e := s.lookup(accountID)
	if e == nil {
		return sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.account.Status = status
	e.account.UpdatedAt = now
	return nil
}

// ApplyDelta atomically applies a signed delta to the account balance.
// The new balance is visible to every later call before ApplyDelta returns.
func (s *InMemory) ApplyDelta(_ context.Context, accountID id.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	e := s.lookup(accountID)
	if e == nil {
		return decimal.Zero, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.account.IsActive() {
		return decimal.Zero, sentinel.ErrAccountBlocked
	}
	next := e.account.Balance.Add(delta)
	if next.Sign() < 0 {
		return decimal.Zero, sentinel.ErrInsufficientBalance
	}
	e.account.Balance = next
	e.account.UpdatedAt = time.Now()
	return next, nil
}

// ApplyTransfer debits src and credits dst as one unit: both commit or
// neither does. Entry locks are taken in ascending account-ID order so two
// opposite concurrent transfers cannot deadlock.
func (s *InMemory) ApplyTransfer(_ context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) error {
	src := s.lookup(srcID)
	if src == nil {
		return sentinel.ErrNotFound
	}
	dst := s.lookup(dstID)
	if dst == nil {
		return sentinel.ErrDestinationUnavailable
	}

	first, second := src, dst
	if accountIDLess(dstID, srcID) {
		first, second = dst, src
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if !src.account.IsActive() {
		return sentinel.ErrAccountBlocked
	}
	if !dst.account.IsActive() {
		return sentinel.ErrDestinationUnavailable
	}
	next := src.account.Balance.Sub(amount)
	if next.Sign() < 0 {
		return sentinel.ErrInsufficientBalance
	}

	now := time.Now()
	src.account.Balance = next
	src.account.UpdatedAt = now
	dst.account.Balance = dst.account.Balance.Add(amount)
	dst.account.UpdatedAt = now
	return nil
}

func (s *InMemory) lookup(accountID id.AccountID) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[accountID]
}

func accountIDLess(a, b id.AccountID) bool {
	ua, ub := uuid.UUID(a), uuid.UUID(b)
	return bytes.Compare(ua[:], ub[:]) < 0
}
