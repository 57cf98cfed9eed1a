package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesOnlyTheOwner(t *testing.T) {
	hub := NewHub(newTestLogger(), observability.NewNopMetrics())

	var mine, theirs []string
	hub.Subscribe("u1", func(n *domain.Notification) error { mine = append(mine, n.ID); return nil })
	hub.Subscribe("u2", func(n *domain.Notification) error { theirs = append(theirs, n.ID); return nil })

	hub.Publish(&domain.Notification{ID: "n1", UserID: "u1"})

	assert.Equal(t, []string{"n1"}, mine)
	assert.Empty(t, theirs)
}

func TestHub_UnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	metrics := observability.NewNopMetrics()
	hub := NewHub(newTestLogger(), metrics)

	calls := 0
	unsubscribe := hub.Subscribe("u1", func(*domain.Notification) error { calls++; return nil })
	assert.Equal(t, 1, hub.Subscribers("u1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationSubscribers))

	unsubscribe()
	unsubscribe()
	hub.Publish(&domain.Notification{ID: "n1", UserID: "u1"})

	assert.Zero(t, calls)
	assert.Zero(t, hub.Subscribers("u1"))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.NotificationSubscribers))
}

func TestHub_FailingSubscriberDoesNotBlockOthers(t *testing.T) {
	metrics := observability.NewNopMetrics()
	hub := NewHub(newTestLogger(), metrics)

	delivered := 0
	hub.Subscribe("u1", func(*domain.Notification) error { panic("broken client") })
	hub.Subscribe("u1", func(*domain.Notification) error { return errors.New("write: broken pipe") })
	hub.Subscribe("u1", func(*domain.Notification) error { delivered++; return nil })

	assert.NotPanics(t, func() { hub.Publish(&domain.Notification{ID: "n1", UserID: "u1"}) })
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationDeliveries.WithLabelValues("panic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationDeliveries.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NotificationDeliveries.WithLabelValues("delivered")))
}

func newNotificationService(t *testing.T) (*NotificationService, pgxmock.PgxPoolIface) {
	mock := newMockPool(t)
	log := newTestLogger()
	metrics := observability.NewNopMetrics()
	svc := NewNotificationService(repository.NewNotificationRepository(mock), NewHub(log, metrics), log, metrics)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

func TestNotificationService_CreatePersistsThenPublishes(t *testing.T) {
	svc, mock := newNotificationService(t)
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), "u1", "INFO", "SYSTEM", "Hello", "World", false, []byte(`{}`), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	var pushed *domain.Notification
	svc.Hub().Subscribe("u1", func(n *domain.Notification) error { pushed = n; return nil })

	n, err := svc.Create(context.Background(), domain.CreateNotificationInput{UserID: "u1", Title: "Hello", Message: "World"})
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationInfo, n.Type)
	assert.Equal(t, domain.CategorySystem, n.Category)
	assert.Equal(t, fixedNow, n.CreatedAt)
	require.NotNil(t, pushed)
	assert.Equal(t, n.ID, pushed.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationService_PersistFailureSkipsDelivery(t *testing.T) {
	svc, mock := newNotificationService(t)
	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), "u1", "INFO", "SYSTEM", "x", "y", false, []byte(`{}`), fixedNow).
		WillReturnError(errors.New("db down"))

	pushed := false
	svc.Hub().Subscribe("u1", func(*domain.Notification) error { pushed = true; return nil })

	_, err := svc.Create(context.Background(), domain.CreateNotificationInput{UserID: "u1", Title: "x", Message: "y"})
	require.Error(t, err)
	assert.False(t, pushed)

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(pgxmock.AnyArg(), "u1", "INFO", "SYSTEM", "x", "y", false, []byte(`{}`), fixedNow).
		WillReturnError(errors.New("db down"))
	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), domain.CreateNotificationInput{UserID: "u1", Title: "x", Message: "y"})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationService_MarkReadMissing(t *testing.T) {
	svc, mock := newNotificationService(t)
	mock.ExpectExec("UPDATE notifications SET read = TRUE WHERE id").
		WithArgs("n-404", "u1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := svc.MarkRead(context.Background(), "u1", "n-404")
	requireAppError(t, err, 404)
	assert.NoError(t, mock.ExpectationsWereMet())
}
