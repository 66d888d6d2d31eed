// Package authority is the single writer of account balances. Every balance
// mutation in the system goes through Credit, Debit, or Transfer; the engine
// and every other component treat Account.Balance as read-only.
package authority

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/sentinel"
)

// AccountStore is the slice of the ledger store the authority needs. The
// store's primitives are atomic; the authority translates their sentinel
// errors into domain errors and bounds transient retries.
type AccountStore interface {
	ApplyDelta(ctx context.Context, accountID id.AccountID, delta decimal.Decimal) (decimal.Decimal, error)
	ApplyTransfer(ctx context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) error
}

// maxTransferAttempts bounds retries on serialization conflicts between
// concurrent transfers. Anything beyond that surfaces as a storage failure
// rather than retrying silently.
const maxTransferAttempts = 3

type Authority struct {
	accounts AccountStore
	logger   *slog.Logger
}

type Option func(a *Authority)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) {
		a.logger = logger
	}
}

func New(accounts AccountStore, opts ...Option) *Authority {
	a := &Authority{accounts: accounts}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Credit applies a positive delta to the account and returns the new
// balance, durably committed before return.
func (a *Authority) Credit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	return a.apply(ctx, accountID, amount)
}

// Debit applies a negative delta to the account and returns the new balance.
// A debit that would drive the balance negative fails with
// insufficient_funds and changes nothing.
func (a *Authority) Debit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	return a.apply(ctx, accountID, amount.Neg())
}

func (a *Authority) apply(ctx context.Context, accountID id.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, err := a.accounts.ApplyDelta(ctx, accountID, delta)
	if err != nil {
		return decimal.Zero, translateDeltaErr(err)
	}
	return balance, nil
}

// Transfer debits src and credits dst as one atomic unit: both commit or
// neither does. Serialization conflicts between concurrent transfers are
// retried a bounded number of times.
func (a *Authority) Transfer(ctx context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) error {
	var err error
	for attempt := 1; attempt <= maxTransferAttempts; attempt++ {
		err = a.accounts.ApplyTransfer(ctx, srcID, dstID, amount)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrUnavailable) {
			return translateTransferErr(err)
		}
		if a.logger != nil {
			a.logger.WarnContext(ctx, "transfer serialization conflict, retrying",
				"attempt", attempt,
				"source_account_id", srcID,
				"destination_account_id", dstID,
			)
		}
	}
	return dErrors.Wrap(err, dErrors.CodeStorageFailure, "transfer did not commit after retries")
}

func translateDeltaErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeAccountNotFound, "account not found")
	case errors.Is(err, sentinel.ErrAccountBlocked):
		return dErrors.New(dErrors.CodeAccountBlocked, "account is blocked")
	case errors.Is(err, sentinel.ErrInsufficientBalance):
		return dErrors.New(dErrors.CodeInsufficientFunds, "insufficient funds")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "balance update failed")
	}
}

func translateTransferErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrDestinationUnavailable):
		return dErrors.New(dErrors.CodeDestinationUnavailable, "destination account unavailable")
	default:
		return translateDeltaErr(err)
	}
}
