package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"corebank/internal/audit"
	"corebank/internal/ledger/models"
	"corebank/internal/policy"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/sentinel"
	"corebank/pkg/requestcontext"
)

// CreateDeposit credits destID with amount. Operator only. The pending row is
// created before the balance moves; the resolution lands it in completed or
// cancelled with the failure reason recorded.
func (e *Engine) CreateDeposit(ctx context.Context, destID id.AccountID, amount decimal.Decimal) (*models.Transaction, error) {
	actor, role, err := e.authorize(ctx, policy.OpCreateDeposit)
	if err != nil {
		return nil, err
	}

	tx, err := models.NewDeposit(id.NewTransactionID(), destID, amount, actor, role, requestcontext.Now(ctx))
	if err != nil {
		e.auditRejected(ctx, actor, role, policy.OpCreateDeposit, err)
		return nil, err
	}
	return e.execute(ctx, tx, movement{
		apply: func(ctx context.Context) error {
			_, err := e.authority.Credit(ctx, destID, amount)
			return err
		},
		reverse: func(ctx context.Context) error {
			_, err := e.authority.Debit(ctx, destID, amount)
			return err
		},
	}, policy.OpCreateDeposit)
}

// CreateWithdrawal debits srcID by amount. Operator only. A withdrawal that
// would overdraw cancels the pending row and leaves the balance unchanged.
func (e *Engine) CreateWithdrawal(ctx context.Context, srcID id.AccountID, amount decimal.Decimal) (*models.Transaction, error) {
	actor, role, err := e.authorize(ctx, policy.OpCreateWithdrawal)
	if err != nil {
		return nil, err
	}

	tx, err := models.NewWithdrawal(id.NewTransactionID(), srcID, amount, actor, role, requestcontext.Now(ctx))
	if err != nil {
		e.auditRejected(ctx, actor, role, policy.OpCreateWithdrawal, err)
		return nil, err
	}
	return e.execute(ctx, tx, movement{
		apply: func(ctx context.Context) error {
			_, err := e.authority.Debit(ctx, srcID, amount)
			return err
		},
		reverse: func(ctx context.Context) error {
			_, err := e.authority.Credit(ctx, srcID, amount)
			return err
		},
	}, policy.OpCreateWithdrawal)
}

// CreateTransfer moves amount from srcID to dstID as a single ledger row.
// Client only, and the client must own the source account; a transfer from a
// foreign account is refused before any row is created.
func (e *Engine) CreateTransfer(ctx context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) (*models.Transaction, error) {
	actor, role, err := e.authorize(ctx, policy.OpCreateTransfer)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	source, err := e.accounts.FindByID(ctx, srcID)
	if err != nil {
		return nil, translateAccountErr(err)
	}
	if !source.OwnedBy(actor) {
		e.incrementDenied()
		e.emitAudit(ctx, audit.Record{
			ActorID:    actor,
			Role:       role,
			Action:     string(policy.OpCreateTransfer),
			TargetType: "account",
			TargetID:   srcID.String(),
			Outcome:    audit.OutcomeDenied,
			Detail:     "source account not owned by actor",
		})
		return nil, dErrors.New(dErrors.CodeForbidden, "source account does not belong to you")
	}

	tx, err := models.NewTransfer(id.NewTransactionID(), srcID, dstID, amount, actor, role, requestcontext.Now(ctx))
	if err != nil {
		e.auditRejected(ctx, actor, role, policy.OpCreateTransfer, err)
		return nil, err
	}
	tx, err = e.execute(ctx, tx, movement{
		apply: func(ctx context.Context) error {
			return e.authority.Transfer(ctx, srcID, dstID, amount)
		},
		reverse: func(ctx context.Context) error {
			return e.authority.Transfer(ctx, dstID, srcID, amount)
		},
	}, policy.OpCreateTransfer)
	if e.metrics != nil {
		e.metrics.ObserveTransfer(start)
	}
	return tx, err
}

// Cancel moves a pending transaction to cancelled without touching balances.
// Operators may cancel any pending transaction; clients only one that touches
// an account they own. A transaction already terminal (including one losing a
// concurrent resolve race) surfaces invalid_state.
func (e *Engine) Cancel(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	actor, role, err := e.authorize(ctx, policy.OpCancel)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	tx, err := e.transactions.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "transaction lookup failed")
	}

	if !policy.CanCancel(role, e.ownsCounterpart(ctx, actor, tx)) {
		e.incrementDenied()
		e.emitAudit(ctx, audit.Record{
			ActorID:    actor,
			Role:       role,
			Action:     string(policy.OpCancel),
			TargetType: "transaction",
			TargetID:   txID.String(),
			Outcome:    audit.OutcomeDenied,
			Detail:     "transaction does not touch an owned account",
		})
		return nil, dErrors.New(dErrors.CodeForbidden, "transaction does not touch an account you own")
	}

	cancelled, err := e.transactions.Resolve(ctx, txID, models.TransactionStatusCancelled, "", requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "transaction is already resolved")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "cancellation did not commit")
	}

	e.incrementResolved(cancelled.Type, cancelled.Status)
	if e.metrics != nil {
		e.metrics.ObserveResolve(start)
	}
	e.emitAudit(ctx, audit.Record{
		ActorID:    actor,
		Role:       role,
		Action:     string(policy.OpCancel),
		TargetType: "transaction",
		TargetID:   txID.String(),
		Outcome:    audit.OutcomeSuccess,
	})
	return cancelled, nil
}

// ListTransactions returns transactions matching the filter. Clients see only
// transactions touching accounts they own; operators see all.
func (e *Engine) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	actor, role, err := e.authorize(ctx, policy.OpListTransactions)
	if err != nil {
		return nil, err
	}

	if role == id.RoleClient {
		accounts, err := e.accounts.ListByOwner(ctx, actor)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to scope listing")
		}
		if len(accounts) == 0 {
			return nil, nil
		}
		filter.AccountIDs = make([]id.AccountID, len(accounts))
		for i, account := range accounts {
			filter.AccountIDs[i] = account.ID
		}
	}

	transactions, err := e.transactions.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list transactions")
	}
	return transactions, nil
}

// ListAuditRecords exposes the audit trail to operators.
func (e *Engine) ListAuditRecords(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	if _, _, err := e.authorize(ctx, policy.OpViewAudit); err != nil {
		return nil, err
	}
	if e.auditLog == nil {
		return nil, nil
	}
	records, err := e.auditLog.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list audit records")
	}
	return records, nil
}

// movement pairs a balance mutation with its exact inverse, so a resolution
// that loses the cancel race can put the money back.
type movement struct {
	apply   func(ctx context.Context) error
	reverse func(ctx context.Context) error
}

// execute persists the pending row, applies the balance movement, and
// resolves the row to its terminal status. A movement failure cancels the row
// with the failure reason and re-signals the original error. A concurrent
// cancel that wins the resolve race after the movement committed gets the
// movement reversed: a cancelled row never leaves a balance trace.
func (e *Engine) execute(ctx context.Context, tx *models.Transaction, move movement, op policy.Operation) (*models.Transaction, error) {
	if err := e.transactions.Create(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to record transaction")
	}

	now := requestcontext.Now(ctx)
	moveErr := move.apply(ctx)
	if moveErr != nil {
		reason := string(dErrors.CodeOf(moveErr))
		cancelled, err := e.transactions.Resolve(ctx, tx.ID, models.TransactionStatusCancelled, reason, now)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				// A concurrent cancel already landed the row terminal. Nothing
				// moved, so the movement error stands.
				e.emitAudit(ctx, audit.Record{
					ActorID:    tx.CreatedBy,
					Role:       tx.CreatedByRole,
					Action:     string(op),
					TargetType: "transaction",
					TargetID:   tx.ID.String(),
					Outcome:    audit.OutcomeFailed,
					Detail:     reason,
				})
				return nil, moveErr
			}
			// The row stays pending; surface the storage failure rather than
			// the movement error so the caller knows the ledger is unsettled.
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to cancel transaction after movement failure")
		}
		e.incrementResolved(cancelled.Type, cancelled.Status)
		e.emitAudit(ctx, audit.Record{
			ActorID:    tx.CreatedBy,
			Role:       tx.CreatedByRole,
			Action:     string(op),
			TargetType: "transaction",
			TargetID:   tx.ID.String(),
			Outcome:    audit.OutcomeFailed,
			Detail:     reason,
		})
		return cancelled, moveErr
	}

	completed, err := e.transactions.Resolve(ctx, tx.ID, models.TransactionStatusCompleted, "", now)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// A concurrent cancel won the race after the balance moved; the
			// cancelled row must not keep the funds, so reverse the movement.
			if revErr := move.reverse(ctx); revErr != nil {
				if e.logger != nil {
					e.logger.ErrorContext(ctx, "movement reversal failed after concurrent cancellation",
						"transaction_id", tx.ID,
						"error", revErr,
					)
				}
				return nil, dErrors.Wrap(revErr, dErrors.CodeStorageFailure, "reversal after concurrent cancellation did not commit")
			}
			e.emitAudit(ctx, audit.Record{
				ActorID:    tx.CreatedBy,
				Role:       tx.CreatedByRole,
				Action:     string(op),
				TargetType: "transaction",
				TargetID:   tx.ID.String(),
				Outcome:    audit.OutcomeFailed,
				Detail:     string(dErrors.CodeInvalidState),
			})
			return nil, dErrors.New(dErrors.CodeInvalidState, "transaction was cancelled concurrently")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to complete transaction")
	}
	e.incrementResolved(completed.Type, completed.Status)
	e.emitAudit(ctx, audit.Record{
		ActorID:    tx.CreatedBy,
		Role:       tx.CreatedByRole,
		Action:     string(op),
		TargetType: "transaction",
		TargetID:   tx.ID.String(),
		Outcome:    audit.OutcomeSuccess,
	})
	return completed, nil
}

// auditRejected records a validation rejection (no row was created).
func (e *Engine) auditRejected(ctx context.Context, actor id.UserID, role id.Role, op policy.Operation, cause error) {
	e.emitAudit(ctx, audit.Record{
		ActorID: actor,
		Role:    role,
		Action:  string(op),
		Outcome: audit.OutcomeFailed,
		Detail:  string(dErrors.CodeOf(cause)),
	})
}

// ownsCounterpart reports whether the actor owns either side of the
// transaction. Lookup failures count as not owned.
func (e *Engine) ownsCounterpart(ctx context.Context, actor id.UserID, tx *models.Transaction) bool {
	for _, accountID := range []*id.AccountID{tx.SourceAccountID, tx.DestinationAccountID} {
		if accountID == nil {
			continue
		}
		account, err := e.accounts.FindByID(ctx, *accountID)
		if err != nil {
			continue
		}
		if account.OwnedBy(actor) {
			return true
		}
	}
	return false
}
