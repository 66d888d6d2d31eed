package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"corebank/internal/ledger/models"
	id "corebank/pkg/domain"
	"corebank/pkg/platform/sentinel"
)

// PostgresStore persists accounts in PostgreSQL. The store is pure I/O;
// balance rules live in single conditional statements so the database is the
// serialization point, and the authority owns error translation and retries.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, owner_id, number, type, balance, status, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID.String(),
		account.OwnerID.String(),
		account.Number,
		string(account.Type),
		account.Balance.String(),
		string(account.Status),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, accountID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) FindByNumber(ctx context.Context, number string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE number = $1`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find account by number: %w", err)
	}
	return account, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetStatus(ctx context.Context, accountID id.AccountID, status models.AccountStatus, now time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`,
		accountID.String(), string(status), now)
	if err != nil {
		return fmt.Errorf("set account status: %w", err)
	}
	rowCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set account status rows affected: %w", err)
	}
	if rowCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// ApplyDelta applies a signed balance delta as a single conditional UPDATE.
// The WHERE clause guards both the non-negative invariant and the blocked
// status, so the statement either commits the new balance or touches nothing.
func (s *PostgresStore) ApplyDelta(ctx context.Context, accountID id.AccountID, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND balance + $2 >= 0
		RETURNING balance
	`
	var raw string
	err := s.db.QueryRowContext(ctx, query, accountID.String(), delta.String()).Scan(&raw)
	if err == nil {
		return decimal.NewFromString(raw)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("apply delta: %w", err)
	}
	// The guarded update matched nothing; diagnose which precondition failed.
	return decimal.Zero, s.diagnoseDeltaFailure(ctx, accountID)
}

func (s *PostgresStore) diagnoseDeltaFailure(ctx context.Context, accountID id.AccountID) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM accounts WHERE id = $1`, accountID.String()).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("diagnose delta failure: %w", err)
	}
	if models.AccountStatus(status) == models.AccountStatusBlocked {
		return sentinel.ErrAccountBlocked
	}
	return sentinel.ErrInsufficientBalance
}

// ApplyTransfer debits src and credits dst inside one database transaction.
// Both rows are locked up front in ascending id order, matching the memory
// store's lock discipline, so opposite transfers cannot deadlock.
func (s *PostgresStore) ApplyTransfer(ctx context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, status, balance FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array([]string{srcID.String(), dstID.String()}))
	if err != nil {
		return transferStoreError("lock accounts", err)
	}

	type lockedRow struct {
		status  string
		balance string
	}
	locked := make(map[string]lockedRow, 2)
	for rows.Next() {
		var rowID string
		var lr lockedRow
		if err := rows.Scan(&rowID, &lr.status, &lr.balance); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked account: %w", err)
		}
		locked[rowID] = lr
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return transferStoreError("lock accounts", err)
	}

	src, ok := locked[srcID.String()]
	if !ok {
		return sentinel.ErrNotFound
	}
	dst, ok := locked[dstID.String()]
	if !ok {
		return sentinel.ErrDestinationUnavailable
	}
	if models.AccountStatus(src.status) != models.AccountStatusActive {
		return sentinel.ErrAccountBlocked
	}
	if models.AccountStatus(dst.status) != models.AccountStatusActive {
		return sentinel.ErrDestinationUnavailable
	}
	srcBalance, err := decimal.NewFromString(src.balance)
	if err != nil {
		return fmt.Errorf("parse source balance: %w", err)
	}
	if srcBalance.Sub(amount).Sign() < 0 {
		return sentinel.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $2, updated_at = NOW() WHERE id = $1`,
		srcID.String(), amount.String()); err != nil {
		return transferStoreError("debit source", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1`,
		dstID.String(), amount.String()); err != nil {
		return transferStoreError("credit destination", err)
	}
	if err := tx.Commit(); err != nil {
		return transferStoreError("commit transfer", err)
	}
	return nil
}

// transferStoreError surfaces serialization conflicts as the retryable
// sentinel and everything else as a plain wrapped error.
func transferStoreError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pqErr.Code == "40001" || pqErr.Code == "40P01" {
			return fmt.Errorf("%s: %w", op, sentinel.ErrUnavailable)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type accountRow interface {
	Scan(dest ...any) error
}

func scanAccount(row accountRow) (*models.Account, error) {
	var account models.Account
	var rawID, rawOwner, rawType, rawBalance, rawStatus string
	if err := row.Scan(&rawID, &rawOwner, &account.Number, &rawType, &rawBalance, &rawStatus, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(rawID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseUserID(rawOwner)
	if err != nil {
		return nil, err
	}
	balance, err := decimal.NewFromString(rawBalance)
	if err != nil {
		return nil, err
	}
	account.ID = accountID
	account.OwnerID = ownerID
	account.Type = models.AccountType(rawType)
	account.Balance = balance
	account.Status = models.AccountStatus(rawStatus)
	return &account, nil
}
