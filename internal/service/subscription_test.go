package service

import (
	"context"
	"testing"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/pkg/payment"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewaySecret = "test-gateway-secret"

var transactionColumns = []string{"id", "user_id", "plan_id", "order_id", "payment_id", "amount", "currency", "status", "created_at", "updated_at"}

var subscriptionColumnNames = []string{
	"id", "user_id", "plan_id", "status", "current_period_start", "current_period_end",
	"trial_end", "canceled_at", "payment_provider_id", "created_at", "updated_at",
}

func newSubscriptionService(t *testing.T) (*SubscriptionService, pgxmock.PgxPoolIface, *recordingNotifier, *payment.MockGateway) {
	mock := newMockPool(t)
	notifier := &recordingNotifier{}
	gateway := payment.NewMockGateway(gatewaySecret)
	svc := NewSubscriptionService(SubscriptionDeps{
		DB:       mock,
		Gateway:  gateway,
		Notifier: notifier,
		Log:      newTestLogger(),
		Metrics:  observability.NewNopMetrics(),
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, mock, notifier, gateway
}

func TestSubscriptionService_VerifyPaymentRejectsBadSignatureWithoutWrites(t *testing.T) {
	svc, mock, notifier, _ := newSubscriptionService(t)

	_, err := svc.VerifyPayment(context.Background(), "user-1", &domain.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: payment.Sign("some-other-secret", "order_1", "pay_1"),
		PlanID:    "starter",
	})

	appErr := requireAppError(t, err, 400)
	assert.Equal(t, "Invalid payment signature", appErr.Message)
	assert.Empty(t, notifier.all())
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.PaymentsVerified.WithLabelValues("bad_signature")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectSettle(mock pgxmock.PgxPoolIface, planID string, amount float64) {
	mock.ExpectQuery("FROM payment_transactions WHERE order_id = \\$1 AND user_id = \\$2").
		WithArgs("order_1", "user-1").
		WillReturnRows(pgxmock.NewRows(transactionColumns).
			AddRow("txn-1", "user-1", planID, "order_1", "", amount, "INR", "CREATED", fixedNow, fixedNow))
	mock.ExpectExec("UPDATE payment_transactions SET status = 'PAID'").
		WithArgs("pay_1", "txn-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE subscriptions SET status = 'CANCELED'").
		WithArgs(fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func verifyRequest(planID string) *domain.VerifyPaymentRequest {
	return &domain.VerifyPaymentRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: payment.Sign(gatewaySecret, "order_1", "pay_1"),
		PlanID:    planID,
	}
}

func TestSubscriptionService_VerifyPaymentActivatesPlan(t *testing.T) {
	svc, mock, notifier, _ := newSubscriptionService(t)
	periodEnd := fixedNow.AddDate(0, 1, 0)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	expectSettle(mock, "starter", 299.0)
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), "user-1", "starter", "ACTIVE", fixedNow, periodEnd,
			pgxmock.AnyArg(), pgxmock.AnyArg(), "pay_1", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE users SET plan_id").
		WithArgs("starter", "ACTIVE", fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO billing_history").
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "PAYMENT_RECEIVED", "starter",
			299.0, "INR", "COMPLETED", "Payment for Starter plan", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	sub, err := svc.VerifyPayment(context.Background(), "user-1", verifyRequest("starter"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Nil(t, sub.TrialEnd)
	assert.Equal(t, "pay_1", sub.PaymentProviderID)
	assert.NoError(t, mock.ExpectationsWereMet())

	got := notifier.all()
	require.Len(t, got, 1)
	assert.Equal(t, domain.CategoryPayment, got[0].Category)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.PaymentsVerified.WithLabelValues("ok")))
}

func TestSubscriptionService_VerifyPaymentFollowsTrialPolicy(t *testing.T) {
	svc, mock, _, _ := newSubscriptionService(t)
	trialEnd := fixedNow.AddDate(0, 0, 14)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	expectSettle(mock, "professional", 599.0)
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), "user-1", "professional", "TRIAL", fixedNow, trialEnd,
			pgxmock.AnyArg(), pgxmock.AnyArg(), "pay_1", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE users SET plan_id").
		WithArgs("professional", "TRIAL", fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO billing_history").
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "PAYMENT_RECEIVED", "professional",
			599.0, "INR", "COMPLETED", "Payment for Professional plan", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	sub, err := svc.VerifyPayment(context.Background(), "user-1", verifyRequest("professional"))
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrial, sub.Status)
	require.NotNil(t, sub.TrialEnd)
	assert.Equal(t, trialEnd, *sub.TrialEnd)
	assert.Equal(t, "pay_1", sub.PaymentProviderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_VerifyPaymentConcurrentLiveInsertIsConflict(t *testing.T) {
	svc, mock, notifier, _ := newSubscriptionService(t)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	expectSettle(mock, "starter", 299.0)
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), "user-1", "starter", "ACTIVE", fixedNow, pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), "pay_1", fixedNow, fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_subscriptions_one_live"})
	mock.ExpectRollback()

	_, err := svc.VerifyPayment(context.Background(), "user-1", verifyRequest("starter"))
	requireAppError(t, err, 409)
	assert.Empty(t, notifier.all())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_VerifyPaymentAlreadySettled(t *testing.T) {
	svc, mock, _, _ := newSubscriptionService(t)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	mock.ExpectQuery("FROM payment_transactions").
		WithArgs("order_1", "user-1").
		WillReturnRows(pgxmock.NewRows(transactionColumns).
			AddRow("txn-1", "user-1", "starter", "order_1", "pay_1", 299.0, "INR", "PAID", fixedNow, fixedNow))
	mock.ExpectRollback()

	_, err := svc.VerifyPayment(context.Background(), "user-1", verifyRequest("starter"))
	requireAppError(t, err, 409)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_VerifyPaymentPlanMismatch(t *testing.T) {
	svc, mock, _, _ := newSubscriptionService(t)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	mock.ExpectQuery("FROM payment_transactions").
		WithArgs("order_1", "user-1").
		WillReturnRows(pgxmock.NewRows(transactionColumns).
			AddRow("txn-1", "user-1", "starter", "order_1", "", 299.0, "INR", "CREATED", fixedNow, fixedNow))
	mock.ExpectRollback()

	_, err := svc.VerifyPayment(context.Background(), "user-1", verifyRequest("business"))
	requireAppError(t, err, 400)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_CreateOrderRecordsTransaction(t *testing.T) {
	svc, mock, _, gateway := newSubscriptionService(t)
	mock.ExpectExec("INSERT INTO payment_transactions").
		WithArgs(pgxmock.AnyArg(), "user-1", "professional", pgxmock.AnyArg(), "", 599.0, "INR", "CREATED", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	resp, err := svc.CreateOrder(context.Background(), "user-1", &domain.CreateOrderRequest{PlanID: "professional"})
	require.NoError(t, err)
	assert.Equal(t, int64(59900), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_mock", resp.KeyID)

	order, ok := gateway.Order(resp.OrderID)
	require.True(t, ok)
	assert.Equal(t, int64(59900), order.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_CreateOrderRejectsFreePlan(t *testing.T) {
	svc, mock, _, _ := newSubscriptionService(t)

	_, err := svc.CreateOrder(context.Background(), "user-1", &domain.CreateOrderRequest{PlanID: "free"})
	requireAppError(t, err, 400)

	_, err = svc.CreateOrder(context.Background(), "user-1", &domain.CreateOrderRequest{PlanID: "platinum"})
	requireAppError(t, err, 404)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_SelectPlanStartsTrial(t *testing.T) {
	svc, mock, notifier, _ := newSubscriptionService(t)
	trialEnd := fixedNow.AddDate(0, 0, 14)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	mock.ExpectExec("UPDATE subscriptions SET status = 'CANCELED'").
		WithArgs(fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs(pgxmock.AnyArg(), "user-1", "professional", "TRIAL", fixedNow, trialEnd,
			pgxmock.AnyArg(), pgxmock.AnyArg(), "", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE users SET plan_id").
		WithArgs("professional", "TRIAL", fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO billing_history").
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "SUBSCRIPTION_CREATED", "professional",
			0.0, "INR", "PENDING", "Started Professional trial", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	sub, err := svc.SelectPlan(context.Background(), "user-1", &domain.SelectPlanRequest{PlanID: "professional"})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionTrial, sub.Status)
	require.NotNil(t, sub.TrialEnd)
	assert.Equal(t, trialEnd, *sub.TrialEnd)
	require.Len(t, notifier.all(), 1)
	assert.Contains(t, notifier.all()[0].Message, "14-day Professional trial")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_SelectPlanUnknownUser(t *testing.T) {
	svc, mock, notifier, _ := newSubscriptionService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows(userColumnNames))
	mock.ExpectRollback()

	_, err := svc.SelectPlan(context.Background(), "ghost", &domain.SelectPlanRequest{PlanID: "starter"})
	requireAppError(t, err, 401)
	assert.Empty(t, notifier.all())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_CancelWithoutSubscription(t *testing.T) {
	svc, mock, _, _ := newSubscriptionService(t)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	mock.ExpectQuery("FROM subscriptions WHERE user_id = \\$1").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(subscriptionColumnNames))
	mock.ExpectRollback()

	err := svc.Cancel(context.Background(), "user-1")
	appErr := requireAppError(t, err, 404)
	assert.Equal(t, "no active subscription", appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionService_CancelMovesUserToFree(t *testing.T) {
	svc, mock, notifier, _ := newSubscriptionService(t)
	trialEnd := fixedNow.AddDate(0, 0, 7)

	mock.ExpectBegin()
	expectUserLock(mock, testUser())
	mock.ExpectQuery("FROM subscriptions WHERE user_id = \\$1").
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(subscriptionColumnNames).AddRow(
			"sub-1", "user-1", "professional", "TRIAL", fixedNow.AddDate(0, 0, -7), trialEnd,
			&trialEnd, (*time.Time)(nil), "", fixedNow.AddDate(0, 0, -7), fixedNow.AddDate(0, 0, -7)))
	mock.ExpectExec("UPDATE subscriptions SET status = 'CANCELED'").
		WithArgs(fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users SET plan_id").
		WithArgs(domain.FreePlanID, "CANCELED", fixedNow, "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO billing_history").
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "SUBSCRIPTION_CANCELED", "professional",
			0.0, "INR", "COMPLETED", "Subscription canceled", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Cancel(context.Background(), "user-1"))
	require.Len(t, notifier.all(), 1)
	assert.Equal(t, domain.NotificationWarning, notifier.all()[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}
