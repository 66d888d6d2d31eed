package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"corebank/internal/ledger/models"
	id "corebank/pkg/domain"
	"corebank/pkg/platform/sentinel"
)

// PostgresStore persists transactions in PostgreSQL. Terminal-state
// immutability is enforced by the conditional UPDATE in Resolve rather than
// application locks.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionColumns = `id, type, source_account_id, destination_account_id, amount,
	status, created_by, created_by_role, created_at, resolved_at, failure_reason`

func (s *PostgresStore) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		tx.ID.String(),
		string(tx.Type),
		nullableID(tx.SourceAccountID),
		nullableID(tx.DestinationAccountID),
		tx.Amount.String(),
		string(tx.Status),
		tx.CreatedBy.String(),
		string(tx.CreatedByRole),
		tx.CreatedAt,
		tx.ResolvedAt,
		tx.FailureReason,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, txID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

// Resolve transitions a pending transaction to a terminal status as one
// guarded UPDATE. When the guard matches nothing the row is either missing
// or already terminal; the follow-up SELECT distinguishes the two.
func (s *PostgresStore) Resolve(ctx context.Context, txID id.TransactionID, status models.TransactionStatus, reason string, resolvedAt time.Time) (*models.Transaction, error) {
	query := `
		UPDATE transactions
		SET status = $2, failure_reason = $3, resolved_at = $4
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + transactionColumns
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query,
		txID.String(), string(status), reason, resolvedAt))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resolve transaction: %w", err)
	}

	var current string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE id = $1`, txID.String()).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("diagnose resolve failure: %w", err)
	}
	return nil, sentinel.ErrInvalidState
}

// List returns matching transactions in insertion order (created_at, id).
func (s *PostgresStore) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		conds = append(conds, "type = "+arg(string(filter.Type)))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if !filter.CreatedBy.IsZero() {
		conds = append(conds, "created_by = "+arg(filter.CreatedBy.String()))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.To))
	}
	if len(filter.AccountIDs) > 0 {
		ids := make([]string, len(filter.AccountIDs))
		for i, accountID := range filter.AccountIDs {
			ids[i] = accountID.String()
		}
		p := arg(pq.Array(ids))
		conds = append(conds, "(source_account_id = ANY("+p+") OR destination_account_id = ANY("+p+"))")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func nullableID(accountID *id.AccountID) any {
	if accountID == nil {
		return nil
	}
	return accountID.String()
}

type transactionRow interface {
	Scan(dest ...any) error
}

func scanTransaction(row transactionRow) (*models.Transaction, error) {
	var tx models.Transaction
	var rawID, rawType, rawAmount, rawStatus, rawCreatedBy, rawRole string
	var rawSource, rawDest, rawReason sql.NullString
	var resolvedAt sql.NullTime
	if err := row.Scan(&rawID, &rawType, &rawSource, &rawDest, &rawAmount,
		&rawStatus, &rawCreatedBy, &rawRole, &tx.CreatedAt, &resolvedAt, &rawReason); err != nil {
		return nil, err
	}
	txID, err := id.ParseTransactionID(rawID)
	if err != nil {
		return nil, err
	}
	createdBy, err := id.ParseUserID(rawCreatedBy)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return nil, err
	}
	tx.ID = txID
	tx.Type = models.TransactionType(rawType)
	tx.Amount = amount
	tx.Status = models.TransactionStatus(rawStatus)
	tx.CreatedBy = createdBy
	tx.CreatedByRole = id.Role(rawRole)
	if rawSource.Valid {
		srcID, err := id.ParseAccountID(rawSource.String)
		if err != nil {
			return nil, err
		}
		tx.SourceAccountID = &srcID
	}
	if rawDest.Valid {
		dstID, err := id.ParseAccountID(rawDest.String)
		if err != nil {
			return nil, err
		}
		tx.DestinationAccountID = &dstID
	}
	if resolvedAt.Valid {
		tx.ResolvedAt = &resolvedAt.Time
	}
	if rawReason.Valid {
		tx.FailureReason = rawReason.String
	}
	return &tx, nil
}
