package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
)

// TransactionType classifies the money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeTransfer   TransactionType = "transfer"
)

// TransactionStatus is the lifecycle state of a transaction.
//
// Transitions:
//
//	pending --resolve(success)--> completed
//	pending --resolve(failure)--> cancelled
//	pending --cancel-----------> cancelled
//
// Completed and cancelled are terminal; no transition leaves them.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether s admits no further transitions.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusCancelled
}

// Transaction is a single ledger row. A transfer is one row carrying both
// account references, not a paired deposit/withdrawal.
//
// Invariants:
//   - Amount > 0
//   - at most one of SourceAccountID/DestinationAccountID is nil, never both
//   - terminal statuses are immutable (enforced by the store's pending guard)
type Transaction struct {
	ID                   id.TransactionID  `json:"id"`
	Type                 TransactionType   `json:"type"`
	SourceAccountID      *id.AccountID     `json:"source_account_id,omitempty"`
	DestinationAccountID *id.AccountID     `json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal   `json:"amount"`
	Status               TransactionStatus `json:"status"`
	CreatedBy            id.UserID         `json:"created_by"`
	CreatedByRole        id.Role           `json:"created_by_role"`
	CreatedAt            time.Time         `json:"created_at"`
	ResolvedAt           *time.Time        `json:"resolved_at,omitempty"`
	// FailureReason carries the domain error code when a resolution failed.
	FailureReason string `json:"failure_reason,omitempty"`
}

// Touches reports whether the transaction references the given account on
// either side.
func (t *Transaction) Touches(accountID id.AccountID) bool {
	if t.SourceAccountID != nil && *t.SourceAccountID == accountID {
		return true
	}
	return t.DestinationAccountID != nil && *t.DestinationAccountID == accountID
}

// CanResolve checks the pending precondition shared by resolution and
// cancellation.
func (t *Transaction) CanResolve() error {
	if t.Status.Terminal() {
		return dErrors.New(dErrors.CodeInvalidState, "transaction is already "+string(t.Status))
	}
	return nil
}

// ApplyCompletion transitions the transaction to completed. Call CanResolve
// first.
func (t *Transaction) ApplyCompletion(now time.Time) {
	t.Status = TransactionStatusCompleted
	t.ResolvedAt = &now
}

// ApplyCancellation transitions the transaction to cancelled, recording the
// failure reason when the cancellation comes from a failed resolution.
func (t *Transaction) ApplyCancellation(now time.Time, reason string) {
	t.Status = TransactionStatusCancelled
	t.ResolvedAt = &now
	t.FailureReason = reason
}

func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	return nil
}

// NewDeposit constructs a pending deposit into destID.
func NewDeposit(txID id.TransactionID, destID id.AccountID, amount decimal.Decimal, actor id.UserID, role id.Role, now time.Time) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return &Transaction{
		ID:                   txID,
		Type:                 TransactionTypeDeposit,
		DestinationAccountID: &destID,
		Amount:               amount,
		Status:               TransactionStatusPending,
		CreatedBy:            actor,
		CreatedByRole:        role,
		CreatedAt:            now,
	}, nil
}

// NewWithdrawal constructs a pending withdrawal from srcID.
func NewWithdrawal(txID id.TransactionID, srcID id.AccountID, amount decimal.Decimal, actor id.UserID, role id.Role, now time.Time) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return &Transaction{
		ID:              txID,
		Type:            TransactionTypeWithdrawal,
		SourceAccountID: &srcID,
		Amount:          amount,
		Status:          TransactionStatusPending,
		CreatedBy:       actor,
		CreatedByRole:   role,
		CreatedAt:       now,
	}, nil
}

// NewTransfer constructs a pending transfer. Source and destination must
// differ.
func NewTransfer(txID id.TransactionID, srcID, destID id.AccountID, amount decimal.Decimal, actor id.UserID, role id.Role, now time.Time) (*Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if srcID == destID {
		return nil, dErrors.New(dErrors.CodeSameAccount, "source and destination accounts must differ")
	}
	return &Transaction{
		ID:                   txID,
		Type:                 TransactionTypeTransfer,
		SourceAccountID:      &srcID,
		DestinationAccountID: &destID,
		Amount:               amount,
		Status:               TransactionStatusPending,
		CreatedBy:            actor,
		CreatedByRole:        role,
		CreatedAt:            now,
	}, nil
}
