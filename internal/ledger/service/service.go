// Package service is the transaction engine: the orchestration layer that
// validates requests, consults the authorization gate, drives the balance
// authority, and records the transaction lifecycle and audit trail.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"corebank/internal/audit"
	ledgermetrics "corebank/internal/ledger/metrics"
	"corebank/internal/ledger/models"
	"corebank/internal/policy"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/requestcontext"
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByNumber(ctx context.Context, number string) (*models.Account, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Account, error)
	SetStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	Resolve(ctx context.Context, txID id.TransactionID, status models.TransactionStatus, reason string, resolvedAt time.Time) (*models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
}

// BalanceAuthority is the only component allowed to mutate balances.
type BalanceAuthority interface {
	Credit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (decimal.Decimal, error)
	Debit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (decimal.Decimal, error)
	Transfer(ctx context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) error
}

type AuditLog interface {
	Emit(ctx context.Context, record audit.Record) error
	List(ctx context.Context, filter audit.Filter) ([]audit.Record, error)
}

// Engine orchestrates the ledger operations.
type Engine struct {
	accounts     AccountStore
	transactions TransactionStore
	authority    BalanceAuthority
	auditLog     AuditLog
	logger       *slog.Logger
	metrics      *ledgermetrics.Metrics
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAuditLog(log AuditLog) Option {
	return func(e *Engine) {
		e.auditLog = log
	}
}

func WithMetrics(m *ledgermetrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an Engine.
func New(accounts AccountStore, transactions TransactionStore, authority BalanceAuthority, opts ...Option) *Engine {
	e := &Engine{accounts: accounts, transactions: transactions, authority: authority}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize exposes the gate check for callers outside the engine's own
// operations (the report boundary). Denials are audited like any other.
func (e *Engine) Authorize(ctx context.Context, op policy.Operation) error {
	_, _, err := e.authorize(ctx, op)
	return err
}

// authorize re-checks the capability table at the operation boundary. A
// refusal emits a denied audit record and surfaces as forbidden; the denied
// operation leaves no other trace.
func (e *Engine) authorize(ctx context.Context, op policy.Operation) (id.UserID, id.Role, error) {
	actor := requestcontext.ActorID(ctx)
	role := requestcontext.Role(ctx)
	if actor.IsZero() {
		return actor, role, dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	if !policy.Allowed(role, op) {
		e.incrementDenied()
		e.emitAudit(ctx, audit.Record{
			ActorID: actor,
			Role:    role,
			Action:  string(op),
			Outcome: audit.OutcomeDenied,
			Detail:  "role not permitted",
		})
		return actor, role, dErrors.New(dErrors.CodeForbidden, "operation not permitted for role")
	}
	return actor, role, nil
}

func (e *Engine) emitAudit(ctx context.Context, record audit.Record) {
	if e.auditLog == nil {
		return
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = requestcontext.Now(ctx)
	}
	if err := e.auditLog.Emit(ctx, record); err != nil && e.logger != nil {
		e.logger.ErrorContext(ctx, "audit emit failed", "action", record.Action, "error", err)
	}
}

func (e *Engine) incrementDenied() {
	if e.metrics != nil {
		e.metrics.IncrementDenied()
	}
}

func (e *Engine) incrementResolved(txType models.TransactionType, status models.TransactionStatus) {
	if e.metrics != nil {
		e.metrics.IncrementResolved(string(txType), string(status))
	}
}
