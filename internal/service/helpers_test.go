package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func newTestLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []domain.CreateNotificationInput
}

func (n *recordingNotifier) Notify(_ context.Context, in domain.CreateNotificationInput) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, in)
}

func (n *recordingNotifier) all() []domain.CreateNotificationInput {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.CreateNotificationInput(nil), n.got...)
}

type recordingReminders struct {
	scheduled []string
}

func (r *recordingReminders) Schedule(_ context.Context, inv *domain.Invoice) error {
	r.scheduled = append(r.scheduled, inv.ID)
	return nil
}

var userColumnNames = []string{
	"id", "name", "email", "password", "role", "company_name", "company_address", "company_phone", "gstin",
	"plan_id", "subscription_status", "invoices_used", "usage_period_start",
	"invoice_prefix", "invoice_suffix", "invoice_start_number", "sgst_rate", "cgst_rate",
	"session_timeout_mins", "two_factor_enabled", "two_factor_secret", "backup_codes", "created_at", "updated_at",
}

func testUser() *domain.User {
	u := domain.NewUser("Asha Rao", "asha@example.com", "hash", fixedNow.AddDate(0, 0, -5))
	u.ID = "user-1"
	return u
}

func userRows(u *domain.User) *pgxmock.Rows {
	backup := u.BackupCodes
	if backup == nil {
		backup = []string{}
	}
	return pgxmock.NewRows(userColumnNames).AddRow(
		u.ID, u.Name, u.Email, u.Password, u.Role, u.CompanyName, u.CompanyAddress, u.CompanyPhone, u.GSTIN,
		u.PlanID, string(u.SubscriptionStatus), u.InvoicesUsed, u.UsagePeriodStart,
		u.InvoicePrefix, u.InvoiceSuffix, u.InvoiceStartNumber, u.SGSTRate, u.CGSTRate,
		u.SessionTimeoutMins, u.TwoFactorEnabled, u.TwoFactorSecret, backup, u.CreatedAt, u.UpdatedAt,
	)
}

// expectUserLock expects the row lock that serializes a user's invoice and
// billing transactions.
func expectUserLock(mock pgxmock.PgxPoolIface, u *domain.User) {
	mock.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(u.ID).
		WillReturnRows(userRows(u))
}

// sessionInsertArgs matches the user_sessions insert made on login.
func sessionInsertArgs(userID, ip string, expiresAt time.Time) []any {
	return []any{
		pgxmock.AnyArg(), userID, pgxmock.AnyArg(), pgxmock.AnyArg(), ip, pgxmock.AnyArg(),
		true, fixedNow, expiresAt, fixedNow,
	}
}

func requireAppError(t *testing.T, err error, code int) *domain.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
