package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const customerSelect = `
	SELECT c.id, c.user_id, c.name, c.email, c.phone, c.company, c.address, c.city, c.state, c.postal_code,
		c.gstin, c.status, c.created_at, c.updated_at,
		(SELECT COUNT(*) FROM invoices i WHERE i.customer_id = c.id) AS invoice_count
	FROM customers c
`

// CustomerRepository handles database operations for customers.
type CustomerRepository struct {
	db DB
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *CustomerRepository) WithTx(tx pgx.Tx) *CustomerRepository {
	return &CustomerRepository{db: tx}
}

// Create inserts a new customer.
func (r *CustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	query := `
		INSERT INTO customers (id, user_id, name, email, phone, company, address, city, state, postal_code, gstin, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Company, c.Address, c.City, c.State, c.PostalCode,
		c.GSTIN, string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	return nil
}

// FindByID returns a customer owned by the given user.
func (r *CustomerRepository) FindByID(ctx context.Context, id, userID string) (*domain.Customer, error) {
	query := customerSelect + ` WHERE c.id = $1 AND c.user_id = $2`
	c, err := scanCustomer(r.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return c, nil
}

// List returns the user's customers, newest first.
func (r *CustomerRepository) List(ctx context.Context, userID string, f domain.CustomerFilter) ([]*domain.Customer, error) {
	where := []string{"c.user_id = $1"}
	args := []any{userID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("c.status = $%d", len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(c.name ILIKE $%d OR c.email ILIKE $%d OR c.company ILIKE $%d)", n, n, n))
	}
	query := customerSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY c.created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []*domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	var status string
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Address, &c.City, &c.State, &c.PostalCode,
		&c.GSTIN, &status, &c.CreatedAt, &c.UpdatedAt, &c.InvoiceCount,
	)
	if err != nil {
		return nil, err
	}
	c.Status = domain.CustomerStatus(status)
	return &c, nil
}

// Update stores the editable fields of a customer.
func (r *CustomerRepository) Update(ctx context.Context, c *domain.Customer) error {
	query := `
		UPDATE customers SET name = $1, email = $2, phone = $3, company = $4, address = $5, city = $6,
			state = $7, postal_code = $8, gstin = $9, status = $10, updated_at = $11
		WHERE id = $12 AND user_id = $13
	`
	_, err := r.db.Exec(ctx, query,
		c.Name, c.Email, c.Phone, c.Company, c.Address, c.City,
		c.State, c.PostalCode, c.GSTIN, string(c.Status), c.UpdatedAt,
		c.ID, c.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// Delete removes a customer owned by the given user.
func (r *CustomerRepository) Delete(ctx context.Context, id, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

// CountInvoices returns how many invoices reference the customer.
func (r *CustomerRepository) CountInvoices(ctx context.Context, id string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE customer_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count customer invoices: %w", err)
	}
	return n, nil
}

// CountByUser returns how many customers the user has.
func (r *CustomerRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}

// Touch bumps updated_at after an invoice is issued to the customer.
func (r *CustomerRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE customers SET updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to touch customer: %w", err)
	}
	return nil
}
