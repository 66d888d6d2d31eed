package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
)

// AccountStatus is the lifecycle state of an account. Accounts are never
// deleted, only blocked.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "active"
	AccountStatusBlocked AccountStatus = "blocked"
)

// AccountType mirrors the product's two account offerings.
type AccountType string

const (
	AccountTypeSavings  AccountType = "savings"
	AccountTypeChecking AccountType = "checking"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	return t == AccountTypeSavings || t == AccountTypeChecking
}

// Account is the aggregate for a bank account.
//
// Invariants:
//   - Balance is never negative at any committed state
//   - Balance is written only by the balance authority's atomic primitives
//   - Number is unique and immutable after creation
//   - Status transitions: active ↔ blocked only
type Account struct {
	ID        id.AccountID    `json:"id"`
	OwnerID   id.UserID       `json:"owner_id"`
	Number    string          `json:"number"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// OwnedBy reports whether the account belongs to the given user.
func (a *Account) OwnedBy(userID id.UserID) bool {
	return a.OwnerID == userID
}

// CanBlock checks the active → blocked transition.
func (a *Account) CanBlock() error {
	if a.Status == AccountStatusBlocked {
		return dErrors.New(dErrors.CodeInvariantViolation, "account is already blocked")
	}
	return nil
}

// ApplyBlock transitions the account to blocked. Call CanBlock first.
func (a *Account) ApplyBlock(now time.Time) {
	a.Status = AccountStatusBlocked
	a.UpdatedAt = now
}

// NewAccount constructs an active account with a zero balance.
func NewAccount(accountID id.AccountID, ownerID id.UserID, number string, accountType AccountType, now time.Time) (*Account, error) {
	if accountID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account id is required")
	}
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account owner is required")
	}
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "account number is required")
	}
	if !accountType.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown account type")
	}
	return &Account{
		ID:        accountID,
		OwnerID:   ownerID,
		Number:    number,
		Type:      accountType,
		Balance:   decimal.Zero,
		Status:    AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
