package repository

import (
	"context"
	"fmt"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

// BillingRepository appends to and reads the billing history ledger.
type BillingRepository struct {
	db DB
}

// NewBillingRepository creates a new BillingRepository.
func NewBillingRepository(db DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *BillingRepository) WithTx(tx pgx.Tx) *BillingRepository {
	return &BillingRepository{db: tx}
}

// Append inserts a history row. Rows are never updated.
func (r *BillingRepository) Append(ctx context.Context, h *domain.BillingHistory) error {
	query := `
		INSERT INTO billing_history (id, user_id, subscription_id, transaction_id, event, plan_id, amount, currency, status, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		h.ID, h.UserID, h.SubscriptionID, h.TransactionID, string(h.Event), h.PlanID,
		h.Amount, h.Currency, string(h.Status), h.Description, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append billing history: %w", err)
	}
	return nil
}

// List returns the user's billing history, newest first.
func (r *BillingRepository) List(ctx context.Context, userID string, limit int) ([]*domain.BillingHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, user_id, subscription_id, transaction_id, event, plan_id, amount, currency, status, description, created_at
		FROM billing_history WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing history: %w", err)
	}
	defer rows.Close()

	var history []*domain.BillingHistory
	for rows.Next() {
		var h domain.BillingHistory
		var event, status string
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.SubscriptionID, &h.TransactionID, &event, &h.PlanID,
			&h.Amount, &h.Currency, &status, &h.Description, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan billing history: %w", err)
		}
		h.Event = domain.BillingEvent(event)
		h.Status = domain.BillingStatus(status)
		history = append(history, &h)
	}
	return history, rows.Err()
}
