package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corebank/internal/audit"
	auditmemory "corebank/internal/audit/store/memory"
	"corebank/internal/ledger/authority"
	"corebank/internal/ledger/models"
	accountstore "corebank/internal/ledger/store/account"
	transactionstore "corebank/internal/ledger/store/transaction"
	id "corebank/pkg/domain"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/requestcontext"
)

type engineFixture struct {
	engine       *Engine
	accounts     *accountstore.InMemory
	transactions *transactionstore.InMemory
	auditStore   *auditmemory.InMemoryStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	accounts := accountstore.NewInMemory()
	transactions := transactionstore.NewInMemory()
	auditStore := auditmemory.NewInMemoryStore()
	publisher := audit.NewPublisher(auditStore)
	t.Cleanup(publisher.Close)

	engine := New(accounts, transactions, authority.New(accounts), WithAuditLog(publisher))
	return &engineFixture{
		engine:       engine,
		accounts:     accounts,
		transactions: transactions,
		auditStore:   auditStore,
	}
}

func asOperator(actor id.UserID) context.Context {
	ctx := requestcontext.WithActorID(context.Background(), actor)
	ctx = requestcontext.WithRole(ctx, id.RoleOperator)
	return requestcontext.WithTime(ctx, time.Now())
}

func asClient(actor id.UserID) context.Context {
	ctx := requestcontext.WithActorID(context.Background(), actor)
	ctx = requestcontext.WithRole(ctx, id.RoleClient)
	return requestcontext.WithTime(ctx, time.Now())
}

func (f *engineFixture) openAccount(t *testing.T, owner id.UserID, balance int64) *models.Account {
	t.Helper()
	operator := id.NewUserID()
	account, err := f.engine.CreateAccount(asOperator(operator), owner, models.AccountTypeSavings)
	require.NoError(t, err)
	if balance > 0 {
		_, err = f.engine.CreateDeposit(asOperator(operator), account.ID, decimal.NewFromInt(balance))
		require.NoError(t, err)
	}
	return account
}

func (f *engineFixture) balance(t *testing.T, accountID id.AccountID) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.FindByID(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

func (f *engineFixture) auditRecords(t *testing.T, filter audit.Filter) []audit.Record {
	t.Helper()
	records, err := f.auditStore.List(context.Background(), filter)
	require.NoError(t, err)
	return records
}

func TestCreateAccount(t *testing.T) {
	t.Run("operator opens an active zero-balance account", func(t *testing.T) {
		f := newEngineFixture(t)
		owner := id.NewUserID()

		account, err := f.engine.CreateAccount(asOperator(id.NewUserID()), owner, models.AccountTypeChecking)
		require.NoError(t, err)
		assert.Equal(t, owner, account.OwnerID)
		assert.Equal(t, models.AccountStatusActive, account.Status)
		assert.True(t, account.Balance.IsZero())
		assert.Len(t, account.Number, 10)
	})

	t.Run("client is refused with a denied audit record", func(t *testing.T) {
		f := newEngineFixture(t)
		client := id.NewUserID()

		_, err := f.engine.CreateAccount(asClient(client), id.NewUserID(), models.AccountTypeSavings)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		records := f.auditRecords(t, audit.Filter{ActorID: client})
		require.Len(t, records, 1)
		assert.Equal(t, audit.OutcomeDenied, records[0].Outcome)
	})

	t.Run("unknown account type is rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.CreateAccount(asOperator(id.NewUserID()), id.NewUserID(), models.AccountType("bonds"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestCreateDeposit(t *testing.T) {
	t.Run("deposit of 100 into empty account completes at 100", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)
		operator := id.NewUserID()

		tx, err := f.engine.CreateDeposit(asOperator(operator), account.ID, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		require.NotNil(t, tx.ResolvedAt)
		assert.True(t, f.balance(t, account.ID).Equal(decimal.NewFromInt(100)))
	})

	t.Run("non-positive amount is rejected before any row exists", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)
		operator := id.NewUserID()

		_, err := f.engine.CreateDeposit(asOperator(operator), account.ID, decimal.Zero)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAmount))

		rows, err := f.transactions.List(context.Background(), models.TransactionFilter{CreatedBy: operator})
		require.NoError(t, err)
		assert.Empty(t, rows)

		records := f.auditRecords(t, audit.Filter{ActorID: operator})
		require.Len(t, records, 1)
		assert.Equal(t, audit.OutcomeFailed, records[0].Outcome)
	})

	t.Run("deposit into missing account cancels the row", func(t *testing.T) {
		f := newEngineFixture(t)
		operator := id.NewUserID()

		tx, err := f.engine.CreateDeposit(asOperator(operator), id.NewAccountID(), decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccountNotFound))
		require.NotNil(t, tx)
		assert.Equal(t, models.TransactionStatusCancelled, tx.Status)
		assert.Equal(t, string(dErrors.CodeAccountNotFound), tx.FailureReason)
	})

	t.Run("deposit into blocked account cancels with account_blocked", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)
		_, err := f.engine.BlockAccount(asOperator(id.NewUserID()), account.ID)
		require.NoError(t, err)

		tx, err := f.engine.CreateDeposit(asOperator(id.NewUserID()), account.ID, decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAccountBlocked))
		assert.Equal(t, models.TransactionStatusCancelled, tx.Status)
	})

	t.Run("client may not deposit", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)

		_, err := f.engine.CreateDeposit(asClient(id.NewUserID()), account.ID, decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestCreateWithdrawal(t *testing.T) {
	t.Run("withdrawal within balance completes", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 100)

		tx, err := f.engine.CreateWithdrawal(asOperator(id.NewUserID()), account.ID, decimal.NewFromInt(30))
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		assert.True(t, f.balance(t, account.ID).Equal(decimal.NewFromInt(70)))
	})

	t.Run("overdraw cancels the row and leaves the balance unchanged", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 50)
		operator := id.NewUserID()

		tx, err := f.engine.CreateWithdrawal(asOperator(operator), account.ID, decimal.NewFromInt(80))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
		require.NotNil(t, tx)
		assert.Equal(t, models.TransactionStatusCancelled, tx.Status)
		assert.Equal(t, string(dErrors.CodeInsufficientFunds), tx.FailureReason)
		assert.True(t, f.balance(t, account.ID).Equal(decimal.NewFromInt(50)))

		records := f.auditRecords(t, audit.Filter{ActorID: operator})
		require.Len(t, records, 1)
		assert.Equal(t, audit.OutcomeFailed, records[0].Outcome)
		assert.Equal(t, string(dErrors.CodeInsufficientFunds), records[0].Detail)
	})
}

func TestCreateTransfer(t *testing.T) {
	t.Run("transfer of 40 moves both balances in one row", func(t *testing.T) {
		f := newEngineFixture(t)
		owner := id.NewUserID()
		src := f.openAccount(t, owner, 100)
		dst := f.openAccount(t, id.NewUserID(), 0)

		tx, err := f.engine.CreateTransfer(asClient(owner), src.ID, dst.ID, decimal.NewFromInt(40))
		require.NoError(t, err)
		assert.Equal(t, models.TransactionTypeTransfer, tx.Type)
		assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
		require.NotNil(t, tx.SourceAccountID)
		require.NotNil(t, tx.DestinationAccountID)
		assert.True(t, f.balance(t, src.ID).Equal(decimal.NewFromInt(60)))
		assert.True(t, f.balance(t, dst.ID).Equal(decimal.NewFromInt(40)))
	})

	t.Run("foreign source is refused with no row and a denied audit record", func(t *testing.T) {
		f := newEngineFixture(t)
		ownerA := id.NewUserID()
		intruder := id.NewUserID()
		src := f.openAccount(t, ownerA, 100)
		dst := f.openAccount(t, intruder, 0)

		_, err := f.engine.CreateTransfer(asClient(intruder), src.ID, dst.ID, decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		rows, err := f.transactions.List(context.Background(), models.TransactionFilter{Type: models.TransactionTypeTransfer})
		require.NoError(t, err)
		assert.Empty(t, rows)

		records := f.auditRecords(t, audit.Filter{ActorID: intruder})
		require.Len(t, records, 1)
		assert.Equal(t, audit.OutcomeDenied, records[0].Outcome)
		assert.True(t, f.balance(t, src.ID).Equal(decimal.NewFromInt(100)))
	})

	t.Run("same source and destination is rejected", func(t *testing.T) {
		f := newEngineFixture(t)
		owner := id.NewUserID()
		src := f.openAccount(t, owner, 100)

		_, err := f.engine.CreateTransfer(asClient(owner), src.ID, src.ID, decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeSameAccount))
	})

	t.Run("blocked destination cancels with destination_unavailable and rolls back", func(t *testing.T) {
		f := newEngineFixture(t)
		owner := id.NewUserID()
		src := f.openAccount(t, owner, 100)
		dst := f.openAccount(t, id.NewUserID(), 0)
		_, err := f.engine.BlockAccount(asOperator(id.NewUserID()), dst.ID)
		require.NoError(t, err)

		tx, err := f.engine.CreateTransfer(asClient(owner), src.ID, dst.ID, decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDestinationUnavailable))
		assert.Equal(t, models.TransactionStatusCancelled, tx.Status)
		assert.True(t, f.balance(t, src.ID).Equal(decimal.NewFromInt(100)))
	})

	t.Run("operator may not transfer", func(t *testing.T) {
		f := newEngineFixture(t)
		src := f.openAccount(t, id.NewUserID(), 100)
		dst := f.openAccount(t, id.NewUserID(), 0)

		_, err := f.engine.CreateTransfer(asOperator(id.NewUserID()), src.ID, dst.ID, decimal.NewFromInt(10))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func TestCancel(t *testing.T) {
	pendingWithdrawal := func(t *testing.T, f *engineFixture, accountID id.AccountID, amount int64) *models.Transaction {
		t.Helper()
		tx, err := models.NewWithdrawal(id.NewTransactionID(), accountID, decimal.NewFromInt(amount), id.NewUserID(), id.RoleOperator, time.Now())
		require.NoError(t, err)
		require.NoError(t, f.transactions.Create(context.Background(), tx))
		return tx
	}

	t.Run("operator cancels any pending transaction without touching balances", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 100)
		tx := pendingWithdrawal(t, f, account.ID, 30)

		cancelled, err := f.engine.Cancel(asOperator(id.NewUserID()), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.ResolvedAt)
		assert.True(t, f.balance(t, account.ID).Equal(decimal.NewFromInt(100)))
	})

	t.Run("second cancel observes invalid_state", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 100)
		tx := pendingWithdrawal(t, f, account.ID, 30)

		_, err := f.engine.Cancel(asOperator(id.NewUserID()), tx.ID)
		require.NoError(t, err)

		_, err = f.engine.Cancel(asOperator(id.NewUserID()), tx.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("cancelling a completed transaction is invalid_state", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)

		tx, err := f.engine.CreateDeposit(asOperator(id.NewUserID()), account.ID, decimal.NewFromInt(10))
		require.NoError(t, err)

		_, err = f.engine.Cancel(asOperator(id.NewUserID()), tx.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("client may cancel only transactions touching an owned account", func(t *testing.T) {
		f := newEngineFixture(t)
		owner := id.NewUserID()
		stranger := id.NewUserID()
		account := f.openAccount(t, owner, 100)
		tx := pendingWithdrawal(t, f, account.ID, 30)

		_, err := f.engine.Cancel(asClient(stranger), tx.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		cancelled, err := f.engine.Cancel(asClient(owner), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatusCancelled, cancelled.Status)
	})

	t.Run("unknown transaction is not_found", func(t *testing.T) {
		f := newEngineFixture(t)
		_, err := f.engine.Cancel(asOperator(id.NewUserID()), id.NewTransactionID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestListTransactions(t *testing.T) {
	f := newEngineFixture(t)
	ownerA := id.NewUserID()
	ownerB := id.NewUserID()
	accountA := f.openAccount(t, ownerA, 100)
	accountB := f.openAccount(t, ownerB, 100)

	_, err := f.engine.CreateTransfer(asClient(ownerA), accountA.ID, accountB.ID, decimal.NewFromInt(10))
	require.NoError(t, err)

	t.Run("operator sees all transactions", func(t *testing.T) {
		all, err := f.engine.ListTransactions(asOperator(id.NewUserID()), models.TransactionFilter{})
		require.NoError(t, err)
		// two funding deposits plus the transfer
		assert.Len(t, all, 3)
	})

	t.Run("client sees only transactions touching owned accounts", func(t *testing.T) {
		mine, err := f.engine.ListTransactions(asClient(ownerA), models.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, mine, 2)
		for _, tx := range mine {
			assert.True(t, tx.Touches(accountA.ID))
		}
	})

	t.Run("client with no accounts sees nothing", func(t *testing.T) {
		none, err := f.engine.ListTransactions(asClient(id.NewUserID()), models.TransactionFilter{})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("type filter applies on top of role scope", func(t *testing.T) {
		transfers, err := f.engine.ListTransactions(asClient(ownerB), models.TransactionFilter{
			Type: models.TransactionTypeTransfer,
		})
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		assert.Equal(t, models.TransactionTypeTransfer, transfers[0].Type)
	})
}

func TestAccountLookups(t *testing.T) {
	t.Run("operator finds an account by number", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)

		found, err := f.engine.FindAccountByNumber(asOperator(id.NewUserID()), account.Number)
		require.NoError(t, err)
		assert.Equal(t, account.ID, found.ID)
	})

	t.Run("client lists own accounts only", func(t *testing.T) {
		f := newEngineFixture(t)
		owner := id.NewUserID()
		mine := f.openAccount(t, owner, 0)
		f.openAccount(t, id.NewUserID(), 0)

		accounts, err := f.engine.ListMyAccounts(asClient(owner))
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, mine.ID, accounts[0].ID)
	})

	t.Run("resolve maps a number to its ID and misses as destination_unavailable", func(t *testing.T) {
		f := newEngineFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)

		resolved, err := f.engine.ResolveAccountNumber(context.Background(), account.Number)
		require.NoError(t, err)
		assert.Equal(t, account.ID, resolved)

		_, err = f.engine.ResolveAccountNumber(context.Background(), "0000000000")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeDestinationUnavailable))
	})
}

func TestListAuditRecords(t *testing.T) {
	f := newEngineFixture(t)
	operator := id.NewUserID()
	f.openAccount(t, id.NewUserID(), 0)

	t.Run("operator reads the trail", func(t *testing.T) {
		records, err := f.engine.ListAuditRecords(asOperator(operator), audit.Filter{})
		require.NoError(t, err)
		assert.NotEmpty(t, records)
	})

	t.Run("client is refused", func(t *testing.T) {
		_, err := f.engine.ListAuditRecords(asClient(id.NewUserID()), audit.Filter{})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// interceptAuthority delegates to a real authority and runs a hook after each
// movement attempt, opening the window between the movement and the row's
// resolution.
type interceptAuthority struct {
	BalanceAuthority
	afterMove func()
}

func (a *interceptAuthority) Credit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := a.BalanceAuthority.Credit(ctx, accountID, amount)
	a.hook()
	return balance, err
}

func (a *interceptAuthority) Debit(ctx context.Context, accountID id.AccountID, amount decimal.Decimal) (decimal.Decimal, error) {
	balance, err := a.BalanceAuthority.Debit(ctx, accountID, amount)
	a.hook()
	return balance, err
}

func (a *interceptAuthority) Transfer(ctx context.Context, srcID, dstID id.AccountID, amount decimal.Decimal) error {
	err := a.BalanceAuthority.Transfer(ctx, srcID, dstID, amount)
	a.hook()
	return err
}

func (a *interceptAuthority) hook() {
	if a.afterMove != nil {
		a.afterMove()
	}
}

func TestResolveCancelRace(t *testing.T) {
	newRaceFixture := func(t *testing.T) (*engineFixture, *interceptAuthority) {
		t.Helper()
		accounts := accountstore.NewInMemory()
		transactions := transactionstore.NewInMemory()
		auditStore := auditmemory.NewInMemoryStore()
		publisher := audit.NewPublisher(auditStore)
		t.Cleanup(publisher.Close)

		intercept := &interceptAuthority{BalanceAuthority: authority.New(accounts)}
		engine := New(accounts, transactions, intercept, WithAuditLog(publisher))
		return &engineFixture{
			engine:       engine,
			accounts:     accounts,
			transactions: transactions,
			auditStore:   auditStore,
		}, intercept
	}

	// cancelPending cancels the single pending row exactly once, simulating a
	// concurrent cancel landing between the movement and the resolution.
	cancelPending := func(t *testing.T, f *engineFixture) func() {
		t.Helper()
		fired := false
		return func() {
			if fired {
				return
			}
			fired = true
			rows, err := f.transactions.List(context.Background(), models.TransactionFilter{Status: models.TransactionStatusPending})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			_, err = f.engine.Cancel(asOperator(id.NewUserID()), rows[0].ID)
			require.NoError(t, err)
		}
	}

	t.Run("cancel racing a deposit reverses the credit", func(t *testing.T) {
		f, intercept := newRaceFixture(t)
		account := f.openAccount(t, id.NewUserID(), 0)
		intercept.afterMove = cancelPending(t, f)

		_, err := f.engine.CreateDeposit(asOperator(id.NewUserID()), account.ID, decimal.NewFromInt(100))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.True(t, f.balance(t, account.ID).IsZero(), "cancelled deposit must leave the balance untouched")

		rows, err := f.transactions.List(context.Background(), models.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, models.TransactionStatusCancelled, rows[0].Status)

		failed := f.auditRecords(t, audit.Filter{Action: "createDeposit"})
		require.Len(t, failed, 1)
		assert.Equal(t, audit.OutcomeFailed, failed[0].Outcome)
		assert.Equal(t, "invalid_state", failed[0].Detail)
	})

	t.Run("cancel racing a transfer restores both balances", func(t *testing.T) {
		f, intercept := newRaceFixture(t)
		owner := id.NewUserID()
		src := f.openAccount(t, owner, 100)
		dst := f.openAccount(t, id.NewUserID(), 0)
		intercept.afterMove = cancelPending(t, f)

		_, err := f.engine.CreateTransfer(asClient(owner), src.ID, dst.ID, decimal.NewFromInt(40))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		assert.True(t, f.balance(t, src.ID).Equal(decimal.NewFromInt(100)))
		assert.True(t, f.balance(t, dst.ID).IsZero())
	})

	t.Run("cancel racing a failed movement keeps the movement error", func(t *testing.T) {
		f, intercept := newRaceFixture(t)
		account := f.openAccount(t, id.NewUserID(), 10)
		intercept.afterMove = cancelPending(t, f)

		_, err := f.engine.CreateWithdrawal(asOperator(id.NewUserID()), account.ID, decimal.NewFromInt(50))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientFunds), "the movement error must survive, got %v", err)
		assert.False(t, dErrors.HasCode(err, dErrors.CodeStorageFailure))
		assert.True(t, f.balance(t, account.ID).Equal(decimal.NewFromInt(10)))

		tx, err := f.transactions.List(context.Background(), models.TransactionFilter{Type: models.TransactionTypeWithdrawal})
		require.NoError(t, err)
		require.Len(t, tx, 1)
		assert.Equal(t, models.TransactionStatusCancelled, tx[0].Status)
	})
}
