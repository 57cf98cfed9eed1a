package service

import (
	"context"
	"errors"
	"testing"

	"github.com/invoicely/backend/internal/observability"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunRecordsOutcome(t *testing.T) {
	metrics := observability.NewNopMetrics()
	s := NewScheduler(newTestLogger(), metrics)

	s.Run("ok_job", func(context.Context) (int64, error) { return 3, nil })
	s.Run("bad_job", func(context.Context) (int64, error) { return 0, errors.New("boom") })

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("ok_job", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobRunsTotal.WithLabelValues("bad_job", "error")))
}

func TestScheduler_RegisterRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(newTestLogger(), observability.NewNopMetrics())
	err := s.Register("broken", "every tuesday", func(context.Context) (int64, error) { return 0, nil })
	assert.Error(t, err)
	assert.Zero(t, s.Entries())
}

func TestScheduler_RegisterMaintenance(t *testing.T) {
	invoices, invMock, _, _ := newInvoiceService(t)
	auth, authMock, _ := newAuthService(t)
	s := NewScheduler(newTestLogger(), observability.NewNopMetrics())

	require.NoError(t, s.RegisterMaintenance(invoices, auth))
	assert.Equal(t, 2, s.Entries())

	s.Start()
	s.Stop()

	invMock.ExpectQuery("UPDATE invoices SET status = 'OVERDUE'").
		WithArgs(fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "invoice_number", "total_amount"}))
	authMock.ExpectExec("UPDATE user_sessions SET is_active = FALSE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := invoices.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	expired, err := auth.ExpireSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), expired)
	assert.NoError(t, invMock.ExpectationsWereMet())
	assert.NoError(t, authMock.ExpectationsWereMet())
}
