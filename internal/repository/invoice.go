package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const invoiceSelect = `
	SELECT i.id, i.user_id, i.customer_id, COALESCE(c.name, '') AS customer_name, i.invoice_number,
		i.issue_date, i.due_date, i.status, i.subtotal, i.sgst_rate, i.sgst_amount, i.cgst_rate, i.cgst_amount,
		i.total_amount, i.notes, i.paid_at, i.created_at, i.updated_at
	FROM invoices i
	LEFT JOIN customers c ON c.id = i.customer_id
`

// InvoiceRepository handles database operations for invoices and their items.
type InvoiceRepository struct {
	db DB
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(db DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *InvoiceRepository) WithTx(tx pgx.Tx) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

// ListNumbers returns the user's invoice numbers that start with "prefix-".
func (r *InvoiceRepository) ListNumbers(ctx context.Context, userID, prefix string) ([]string, error) {
	query := `SELECT invoice_number FROM invoices WHERE user_id = $1 AND starts_with(invoice_number, $2)`
	rows, err := r.db.Query(ctx, query, userID, prefix+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan invoice number: %w", err)
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// NumberExists checks whether the user already issued the given number.
func (r *InvoiceRepository) NumberExists(ctx context.Context, userID, number string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM invoices WHERE user_id = $1 AND invoice_number = $2)`
	if err := r.db.QueryRow(ctx, query, userID, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invoice number: %w", err)
	}
	return exists, nil
}

// Create inserts an invoice together with its items.
func (r *InvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (id, user_id, customer_id, invoice_number, issue_date, due_date, status,
			subtotal, sgst_rate, sgst_amount, cgst_rate, cgst_amount, total_amount, notes, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.Exec(ctx, query,
		inv.ID, inv.UserID, inv.CustomerID, inv.InvoiceNumber, inv.IssueDate, inv.DueDate, string(inv.Status),
		inv.Subtotal, inv.SGSTRate, inv.SGSTAmount, inv.CGSTRate, inv.CGSTAmount, inv.TotalAmount, inv.Notes,
		inv.PaidAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return r.insertItems(ctx, inv.Items)
}

func (r *InvoiceRepository) insertItems(ctx context.Context, items []domain.InvoiceItem) error {
	query := `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, rate, amount, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, it := range items {
		_, err := r.db.Exec(ctx, query, it.ID, it.InvoiceID, it.Description, it.Quantity, it.Rate, it.Amount, it.Position)
		if err != nil {
			return fmt.Errorf("failed to create invoice item: %w", err)
		}
	}
	return nil
}

// FindByID returns an invoice owned by the user, including its items.
func (r *InvoiceRepository) FindByID(ctx context.Context, id, userID string) (*domain.Invoice, error) {
	query := invoiceSelect + ` WHERE i.id = $1 AND i.user_id = $2`
	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}

	items, err := r.items(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *InvoiceRepository) items(ctx context.Context, invoiceID string) ([]domain.InvoiceItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, rate, amount, position
		FROM invoice_items WHERE invoice_id = $1 ORDER BY position
	`
	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice items: %w", err)
	}
	defer rows.Close()

	var items []domain.InvoiceItem
	for rows.Next() {
		var it domain.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.Rate, &it.Amount, &it.Position); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns the user's invoices without items, newest first.
func (r *InvoiceRepository) List(ctx context.Context, userID string, f domain.InvoiceFilter) ([]*domain.Invoice, error) {
	where := []string{"i.user_id = $1"}
	args := []any{userID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("i.customer_id = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(f.Offset, 0))
	query := invoiceSelect + ` WHERE ` + strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY i.issue_date DESC, i.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var inv domain.Invoice
	var status string
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.CustomerID, &inv.CustomerName, &inv.InvoiceNumber,
		&inv.IssueDate, &inv.DueDate, &status, &inv.Subtotal, &inv.SGSTRate, &inv.SGSTAmount, &inv.CGSTRate, &inv.CGSTAmount,
		&inv.TotalAmount, &inv.Notes, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}

// UpdateStatus moves an invoice to a new status. paidAt is stored as given,
// so callers clear it when leaving PAID.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id, userID string, status domain.InvoiceStatus, paidAt *time.Time) (bool, error) {
	query := `UPDATE invoices SET status = $1, paid_at = $2, updated_at = NOW() WHERE id = $3 AND user_id = $4`
	tag, err := r.db.Exec(ctx, query, string(status), paidAt, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to update invoice status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Update stores edited fields and replaces the invoice's items.
func (r *InvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices SET due_date = $1, subtotal = $2, sgst_amount = $3, cgst_amount = $4, total_amount = $5,
			notes = $6, updated_at = $7
		WHERE id = $8 AND user_id = $9
	`
	_, err := r.db.Exec(ctx, query,
		inv.DueDate, inv.Subtotal, inv.SGSTAmount, inv.CGSTAmount, inv.TotalAmount, inv.Notes, inv.UpdatedAt,
		inv.ID, inv.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	return r.insertItems(ctx, inv.Items)
}

// Delete removes an invoice owned by the user. Items cascade.
func (r *InvoiceRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete invoice: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats aggregates the user's invoices by status.
func (r *InvoiceRepository) Stats(ctx context.Context, userID string) (*domain.InvoiceStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)::float8
		FROM invoices WHERE user_id = $1 GROUP BY status
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.InvoiceStats{ByStatus: make(map[domain.InvoiceStatus]domain.StatusTally)}
	for rows.Next() {
		var status string
		var tally domain.StatusTally
		if err := rows.Scan(&status, &tally.Count, &tally.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan invoice stats: %w", err)
		}
		s := domain.InvoiceStatus(status)
		stats.ByStatus[s] = tally
		stats.TotalInvoices += tally.Count
		stats.TotalBilled += tally.Amount
		switch {
		case s == domain.InvoicePaid:
			stats.TotalPaid += tally.Amount
		case s.Outstanding():
			stats.TotalOutstanding += tally.Amount
		}
	}
	return stats, rows.Err()
}

// MarkOverdue flips SENT and PENDING invoices due before cutoff to OVERDUE
// and returns the invoices it changed.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, cutoff time.Time) ([]domain.OverdueInvoice, error) {
	query := `
		UPDATE invoices SET status = 'OVERDUE', updated_at = NOW()
		WHERE status IN ('SENT', 'PENDING') AND due_date < $1
		RETURNING id, user_id, invoice_number, total_amount
	`
	rows, err := r.db.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	defer rows.Close()

	var out []domain.OverdueInvoice
	for rows.Next() {
		var o domain.OverdueInvoice
		if err := rows.Scan(&o.ID, &o.UserID, &o.InvoiceNumber, &o.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan overdue invoice: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
