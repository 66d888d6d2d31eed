//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema holds the full ledger DDL so integration suites run against the same
// shape the migrations produce.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	number TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	balance NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts (owner_id);

CREATE TABLE IF NOT EXISTS transactions (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	source_account_id UUID REFERENCES accounts (id),
	destination_account_id UUID REFERENCES accounts (id),
	amount NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
	status TEXT NOT NULL,
	created_by UUID NOT NULL,
	created_by_role TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	resolved_at TIMESTAMPTZ,
	failure_reason TEXT NOT NULL DEFAULT '',
	CHECK (source_account_id IS NOT NULL OR destination_account_id IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions (source_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions (destination_account_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions (created_at);

CREATE TABLE IF NOT EXISTS audit_records (
	id UUID PRIMARY KEY,
	actor_id UUID NOT NULL,
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	target_type TEXT NOT NULL DEFAULT '',
	target_id TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_records (actor_id);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// ledger schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new PostgreSQL container and applies the
// schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("corebank_test"),
		tcpostgres.WithUsername("corebank"),
		tcpostgres.WithPassword("corebank"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, URL: url, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// Truncate clears all ledger tables. Use between tests to ensure isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `TRUNCATE transactions, accounts, audit_records`)
	return err
}
