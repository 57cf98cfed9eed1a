package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, password, role, company_name, company_address, company_phone, gstin,
	plan_id, subscription_status, invoices_used, usage_period_start,
	invoice_prefix, invoice_suffix, invoice_start_number, sgst_rate, cgst_rate,
	session_timeout_mins, two_factor_enabled, two_factor_secret, backup_codes, created_at, updated_at`

// UserRepository handles database operations for users.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy bound to the given transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	backup := u.BackupCodes
	if backup == nil {
		backup = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		u.ID, u.Name, u.Email, u.Password, u.Role, u.CompanyName, u.CompanyAddress, u.CompanyPhone, u.GSTIN,
		u.PlanID, string(u.SubscriptionStatus), u.InvoicesUsed, u.UsagePeriodStart,
		u.InvoicePrefix, u.InvoiceSuffix, u.InvoiceStartNumber, u.SGSTRate, u.CGSTRate,
		u.SessionTimeoutMins, u.TwoFactorEnabled, u.TwoFactorSecret, backup, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// FindByIDForUpdate returns a user and locks the row until the surrounding
// transaction ends. Invoice creation uses it to serialize numbering per user.
func (r *UserRepository) FindByIDForUpdate(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var status string
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.CompanyName, &u.CompanyAddress, &u.CompanyPhone, &u.GSTIN,
		&u.PlanID, &status, &u.InvoicesUsed, &u.UsagePeriodStart,
		&u.InvoicePrefix, &u.InvoiceSuffix, &u.InvoiceStartNumber, &u.SGSTRate, &u.CGSTRate,
		&u.SessionTimeoutMins, &u.TwoFactorEnabled, &u.TwoFactorSecret, &u.BackupCodes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	u.SubscriptionStatus = domain.SubscriptionStatus(status)
	return &u, nil
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`
	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ListAll returns all users ordered by creation date.
func (r *UserRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes a user by ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// UpdateProfile stores the profile and company fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p *domain.UpdateProfileRequest) error {
	query := `
		UPDATE users SET name = $1, company_name = $2, company_address = $3, company_phone = $4, gstin = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, p.Name, p.CompanyName, p.CompanyAddress, p.CompanyPhone, p.GSTIN, id)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// UpdateInvoiceSettings stores numbering and tax preferences.
func (r *UserRepository) UpdateInvoiceSettings(ctx context.Context, id string, s *domain.InvoiceSettings) error {
	query := `
		UPDATE users SET invoice_prefix = $1, invoice_suffix = $2, invoice_start_number = $3,
			sgst_rate = $4, cgst_rate = $5, updated_at = NOW()
		WHERE id = $6
	`
	_, err := r.db.Exec(ctx, query, s.InvoicePrefix, s.InvoiceSuffix, s.InvoiceStartNumber, s.SGSTRate, s.CGSTRate, id)
	if err != nil {
		return fmt.Errorf("failed to update invoice settings: %w", err)
	}
	return nil
}

// UpdateSessionTimeout stores the session lifetime in minutes.
func (r *UserRepository) UpdateSessionTimeout(ctx context.Context, id string, minutes int) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET session_timeout_mins = $1, updated_at = NOW() WHERE id = $2`, minutes, id)
	if err != nil {
		return fmt.Errorf("failed to update session timeout: %w", err)
	}
	return nil
}

// UpdatePassword stores a new bcrypt hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetTwoFactorSecret stores a pending (not yet enabled) encrypted TOTP secret.
func (r *UserRepository) SetTwoFactorSecret(ctx context.Context, id, encSecret string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET two_factor_secret = $1, updated_at = NOW() WHERE id = $2`, encSecret, id)
	if err != nil {
		return fmt.Errorf("failed to store two-factor secret: %w", err)
	}
	return nil
}

// EnableTwoFactor turns on two-factor auth and stores hashed backup codes.
func (r *UserRepository) EnableTwoFactor(ctx context.Context, id string, backupHashes []string) error {
	query := `UPDATE users SET two_factor_enabled = TRUE, backup_codes = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, backupHashes, id)
	if err != nil {
		return fmt.Errorf("failed to enable two-factor: %w", err)
	}
	return nil
}

// DisableTwoFactor clears all two-factor state.
func (r *UserRepository) DisableTwoFactor(ctx context.Context, id string) error {
	query := `UPDATE users SET two_factor_enabled = FALSE, two_factor_secret = '', backup_codes = '{}', updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}
	return nil
}

// UpdateBackupCodes replaces the remaining hashed backup codes.
func (r *UserRepository) UpdateBackupCodes(ctx context.Context, id string, backupHashes []string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET backup_codes = $1, updated_at = NOW() WHERE id = $2`, backupHashes, id)
	if err != nil {
		return fmt.Errorf("failed to update backup codes: %w", err)
	}
	return nil
}

// IncrementInvoicesUsed bumps the usage counter for the current period.
func (r *UserRepository) IncrementInvoicesUsed(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET invoices_used = invoices_used + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment invoice usage: %w", err)
	}
	return nil
}

// ResetUsage starts a new usage period with a zero counter.
func (r *UserRepository) ResetUsage(ctx context.Context, id string, periodStart time.Time) error {
	query := `UPDATE users SET invoices_used = 0, usage_period_start = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, query, periodStart, id)
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// UpdatePlan assigns a plan and billing status and resets the usage counters.
func (r *UserRepository) UpdatePlan(ctx context.Context, id, planID string, status domain.SubscriptionStatus, periodStart time.Time) error {
	query := `
		UPDATE users SET plan_id = $1, subscription_status = $2, invoices_used = 0, usage_period_start = $3, updated_at = NOW()
		WHERE id = $4
	`
	_, err := r.db.Exec(ctx, query, planID, string(status), periodStart, id)
	if err != nil {
		return fmt.Errorf("failed to update user plan: %w", err)
	}
	return nil
}

// Count returns the number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
