package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

// TransactionRepository tracks payment gateway orders.
type TransactionRepository struct {
	db DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

// Create records a freshly created gateway order.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.PaymentTransaction) error {
	query := `
		INSERT INTO payment_transactions (id, user_id, plan_id, order_id, payment_id, amount, currency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		t.ID, t.UserID, t.PlanID, t.OrderID, t.PaymentID, t.Amount, t.Currency, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}
	return nil
}

// FindByOrderIDForUpdate loads the user's transaction for an order and
// locks it so a payment is settled at most once.
func (r *TransactionRepository) FindByOrderIDForUpdate(ctx context.Context, orderID, userID string) (*domain.PaymentTransaction, error) {
	query := `
		SELECT id, user_id, plan_id, order_id, payment_id, amount, currency, status, created_at, updated_at
		FROM payment_transactions WHERE order_id = $1 AND user_id = $2
		FOR UPDATE
	`
	var t domain.PaymentTransaction
	var status string
	err := r.db.QueryRow(ctx, query, orderID, userID).Scan(
		&t.ID, &t.UserID, &t.PlanID, &t.OrderID, &t.PaymentID, &t.Amount, &t.Currency, &status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment transaction: %w", err)
	}
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}

// MarkPaid records the gateway payment id against a transaction.
func (r *TransactionRepository) MarkPaid(ctx context.Context, id, paymentID string) error {
	query := `UPDATE payment_transactions SET status = 'PAID', payment_id = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, paymentID, id); err != nil {
		return fmt.Errorf("failed to mark transaction paid: %w", err)
	}
	return nil
}
