package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"corebank/internal/audit"
	"corebank/internal/ledger/models"
	"corebank/internal/policy"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/sentinel"
	"corebank/pkg/requestcontext"
)

// maxNumberAttempts bounds retries when a generated account number collides
// with an existing one.
const maxNumberAttempts = 5

// CreateAccount opens an active account with a zero balance for the given
// owner. Operator only; account numbers are generated 10-digit strings,
// unique per store.
func (e *Engine) CreateAccount(ctx context.Context, ownerID id.UserID, accountType models.AccountType) (*models.Account, error) {
	actor, role, err := e.authorize(ctx, policy.OpCreateAccount)
	if err != nil {
		return nil, err
	}
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account owner is required")
	}

	now := requestcontext.Now(ctx)
	var account *models.Account
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		account, err = models.NewAccount(id.NewAccountID(), ownerID, newAccountNumber(), accountType, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
			}
			return nil, err
		}
		err = e.accounts.Create(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to create account")
		}
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "could not allocate a unique account number")
	}

	e.emitAudit(ctx, audit.Record{
		ActorID:    actor,
		Role:       role,
		Action:     string(policy.OpCreateAccount),
		TargetType: "account",
		TargetID:   account.ID.String(),
		Outcome:    audit.OutcomeSuccess,
	})
	return account, nil
}

// BlockAccount transitions an account to blocked. Operator only. Blocked
// accounts refuse every balance mutation until reactivated; the balance is
// retained.
func (e *Engine) BlockAccount(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	actor, role, err := e.authorize(ctx, policy.OpBlockAccount)
	if err != nil {
		return nil, err
	}

	account, err := e.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, translateAccountErr(err)
	}
	if err := account.CanBlock(); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidState, "account is already blocked")
	}

	now := requestcontext.Now(ctx)
	if err := e.accounts.SetStatus(ctx, accountID, models.AccountStatusBlocked, now); err != nil {
		return nil, translateAccountErr(err)
	}
	account.ApplyBlock(now)

	e.emitAudit(ctx, audit.Record{
		ActorID:    actor,
		Role:       role,
		Action:     string(policy.OpBlockAccount),
		TargetType: "account",
		TargetID:   accountID.String(),
		Outcome:    audit.OutcomeSuccess,
	})
	return account, nil
}

// FindAccountByNumber looks an account up by its number. Operator search path.
func (e *Engine) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	if _, _, err := e.authorize(ctx, policy.OpSearchAccounts); err != nil {
		return nil, err
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account number is required")
	}
	account, err := e.accounts.FindByNumber(ctx, number)
	if err != nil {
		return nil, translateAccountErr(err)
	}
	return account, nil
}

// ListMyAccounts returns the accounts owned by the authenticated client.
func (e *Engine) ListMyAccounts(ctx context.Context) ([]*models.Account, error) {
	actor, _, err := e.authorize(ctx, policy.OpListOwnAccounts)
	if err != nil {
		return nil, err
	}
	accounts, err := e.accounts.ListByOwner(ctx, actor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list accounts")
	}
	return accounts, nil
}

// ResolveAccountNumber maps an account number to its ID for the transfer
// boundary, where destinations are addressed by number. Deliberately ungated:
// it reveals only existence, and a missing number surfaces the same
// destination_unavailable the transfer itself would.
func (e *Engine) ResolveAccountNumber(ctx context.Context, number string) (id.AccountID, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return id.AccountID{}, dErrors.New(dErrors.CodeInvalidInput, "destination account number is required")
	}
	account, err := e.accounts.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return id.AccountID{}, dErrors.New(dErrors.CodeDestinationUnavailable, "destination account unavailable")
		}
		return id.AccountID{}, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to resolve account number")
	}
	return account.ID, nil
}

func translateAccountErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeAccountNotFound, "account not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "account lookup failed")
	}
}

func newAccountNumber() string {
	return fmt.Sprintf("%010d", rand.Uint64N(10_000_000_000))
}
