package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `id, user_id, plan_id, status, current_period_start, current_period_end,
	trial_end, canceled_at, payment_provider_id, created_at, updated_at`

// SubscriptionRepository handles database operations for subscriptions.
type SubscriptionRepository struct {
	db DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *SubscriptionRepository) WithTx(tx pgx.Tx) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

// Create inserts a new subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Status),
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.TrialEnd, sub.CanceledAt,
		sub.PaymentProviderID, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// FindLive returns the user's ACTIVE or TRIAL subscription.
func (r *SubscriptionRepository) FindLive(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions WHERE user_id = $1 AND status IN ('ACTIVE', 'TRIAL')
		ORDER BY created_at DESC LIMIT 1
	`
	var sub domain.Subscription
	var status string
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.TrialEnd, &sub.CanceledAt,
		&sub.PaymentProviderID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	sub.Status = domain.SubscriptionStatus(status)
	return &sub, nil
}

// CancelLive cancels every ACTIVE or TRIAL subscription of the user and
// returns how many were canceled.
func (r *SubscriptionRepository) CancelLive(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE subscriptions SET status = 'CANCELED', canceled_at = $1, updated_at = $1
		WHERE user_id = $2 AND status IN ('ACTIVE', 'TRIAL')
	`
	tag, err := r.db.Exec(ctx, query, at, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}
