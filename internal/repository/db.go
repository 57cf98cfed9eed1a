package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx, so every
// repository can run either standalone or inside a transaction.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// InTx runs fn inside a transaction, committing on success and rolling back
// when fn returns an error.
func InTx(ctx context.Context, db DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key failure.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// RunMigrations executes the schema migration.
func RunMigrations(ctx context.Context, db DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			name                 TEXT NOT NULL,
			email                TEXT NOT NULL UNIQUE,
			password             TEXT NOT NULL,
			role                 TEXT NOT NULL DEFAULT 'user',
			company_name         TEXT NOT NULL DEFAULT '',
			company_address      TEXT NOT NULL DEFAULT '',
			company_phone        TEXT NOT NULL DEFAULT '',
			gstin                TEXT NOT NULL DEFAULT '',
			plan_id              TEXT NOT NULL DEFAULT 'free',
			subscription_status  TEXT NOT NULL DEFAULT 'NONE',
			invoices_used        INTEGER NOT NULL DEFAULT 0,
			usage_period_start   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			invoice_prefix       TEXT NOT NULL DEFAULT 'INV',
			invoice_suffix       TEXT NOT NULL DEFAULT '',
			invoice_start_number INTEGER NOT NULL DEFAULT 1,
			sgst_rate            NUMERIC(5,2) NOT NULL DEFAULT 2.5,
			cgst_rate            NUMERIC(5,2) NOT NULL DEFAULT 2.5,
			session_timeout_mins INTEGER NOT NULL DEFAULT 1440,
			two_factor_enabled   BOOLEAN NOT NULL DEFAULT FALSE,
			two_factor_secret    TEXT NOT NULL DEFAULT '',
			backup_codes         TEXT[] NOT NULL DEFAULT '{}',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS user_sessions (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			device      TEXT NOT NULL DEFAULT '',
			browser     TEXT NOT NULL DEFAULT '',
			ip_address  TEXT NOT NULL DEFAULT '',
			user_agent  TEXT NOT NULL DEFAULT '',
			is_active   BOOLEAN NOT NULL DEFAULT TRUE,
			last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at  TIMESTAMPTZ NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_user_sessions_user_id ON user_sessions(user_id);

		CREATE TABLE IF NOT EXISTS customers (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			email       TEXT NOT NULL DEFAULT '',
			phone       TEXT NOT NULL DEFAULT '',
			company     TEXT NOT NULL DEFAULT '',
			address     TEXT NOT NULL DEFAULT '',
			city        TEXT NOT NULL DEFAULT '',
			state       TEXT NOT NULL DEFAULT '',
			postal_code TEXT NOT NULL DEFAULT '',
			gstin       TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'ACTIVE',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_customers_user_id ON customers(user_id);

		CREATE TABLE IF NOT EXISTS invoices (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			customer_id    TEXT REFERENCES customers(id),
			invoice_number TEXT NOT NULL,
			issue_date     TIMESTAMPTZ NOT NULL,
			due_date       TIMESTAMPTZ NOT NULL,
			status         TEXT NOT NULL DEFAULT 'DRAFT',
			subtotal       NUMERIC(14,2) NOT NULL,
			sgst_rate      NUMERIC(5,2) NOT NULL,
			sgst_amount    NUMERIC(14,2) NOT NULL,
			cgst_rate      NUMERIC(5,2) NOT NULL,
			cgst_amount    NUMERIC(14,2) NOT NULL,
			total_amount   NUMERIC(14,2) NOT NULL,
			notes          TEXT NOT NULL DEFAULT '',
			paid_at        TIMESTAMPTZ,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_user_number ON invoices(user_id, invoice_number);
		CREATE INDEX IF NOT EXISTS idx_invoices_customer_id ON invoices(customer_id);
		CREATE INDEX IF NOT EXISTS idx_invoices_status_due ON invoices(status, due_date);

		CREATE TABLE IF NOT EXISTS invoice_items (
			id          TEXT PRIMARY KEY,
			invoice_id  TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
			description TEXT NOT NULL,
			quantity    NUMERIC(12,3) NOT NULL,
			rate        NUMERIC(14,2) NOT NULL,
			amount      NUMERIC(14,2) NOT NULL,
			position    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_id ON invoice_items(invoice_id);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			plan_id              TEXT NOT NULL,
			status               TEXT NOT NULL,
			current_period_start TIMESTAMPTZ NOT NULL,
			current_period_end   TIMESTAMPTZ NOT NULL,
			trial_end            TIMESTAMPTZ,
			canceled_at          TIMESTAMPTZ,
			payment_provider_id  TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_user_status ON subscriptions(user_id, status);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_live ON subscriptions(user_id)
			WHERE status IN ('ACTIVE', 'TRIAL');

		CREATE TABLE IF NOT EXISTS payment_transactions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			plan_id    TEXT NOT NULL,
			order_id   TEXT NOT NULL UNIQUE,
			payment_id TEXT NOT NULL DEFAULT '',
			amount     NUMERIC(14,2) NOT NULL,
			currency   TEXT NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS billing_history (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subscription_id TEXT,
			transaction_id  TEXT,
			event           TEXT NOT NULL,
			plan_id         TEXT NOT NULL DEFAULT '',
			amount          NUMERIC(14,2) NOT NULL DEFAULT 0,
			currency        TEXT NOT NULL DEFAULT 'INR',
			status          TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_billing_history_user_id ON billing_history(user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS payment_methods (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type       TEXT NOT NULL,
			label      TEXT NOT NULL DEFAULT '',
			masked     TEXT NOT NULL,
			details    TEXT NOT NULL,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payment_methods_user_id ON payment_methods(user_id);

		CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type       TEXT NOT NULL,
			category   TEXT NOT NULL,
			title      TEXT NOT NULL,
			message    TEXT NOT NULL,
			read       BOOLEAN NOT NULL DEFAULT FALSE,
			metadata   JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);
	`
	_, err := db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
