package repository

import (
	"context"
	"fmt"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

// PaymentMethodRepository handles database operations for saved payment methods.
type PaymentMethodRepository struct {
	db DB
}

// NewPaymentMethodRepository creates a new PaymentMethodRepository.
func NewPaymentMethodRepository(db DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *PaymentMethodRepository) WithTx(tx pgx.Tx) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: tx}
}

// Create inserts a payment method with already-encrypted details.
func (r *PaymentMethodRepository) Create(ctx context.Context, m *domain.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (id, user_id, type, label, masked, details, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.UserID, string(m.Type), m.Label, m.Masked, m.Details, m.IsDefault, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment method: %w", err)
	}
	return nil
}

// List returns the user's payment methods, default first.
func (r *PaymentMethodRepository) List(ctx context.Context, userID string) ([]*domain.PaymentMethod, error) {
	query := `
		SELECT id, user_id, type, label, masked, details, is_default, created_at
		FROM payment_methods WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []*domain.PaymentMethod
	for rows.Next() {
		var m domain.PaymentMethod
		var typ string
		if err := rows.Scan(&m.ID, &m.UserID, &typ, &m.Label, &m.Masked, &m.Details, &m.IsDefault, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		m.Type = domain.PaymentMethodType(typ)
		methods = append(methods, &m)
	}
	return methods, rows.Err()
}

// ClearDefault unsets the default flag on all of the user's methods.
func (r *PaymentMethodRepository) ClearDefault(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear default payment method: %w", err)
	}
	return nil
}

// SetDefault marks one method as the default.
func (r *PaymentMethodRepository) SetDefault(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE payment_methods SET is_default = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to set default payment method: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a payment method.
func (r *PaymentMethodRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete payment method: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
