package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/invoicely/backend/internal/service"
	"github.com/invoicely/backend/pkg/crypto"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var userColumnNames = []string{
	"id", "name", "email", "password", "role", "company_name", "company_address", "company_phone", "gstin",
	"plan_id", "subscription_status", "invoices_used", "usage_period_start",
	"invoice_prefix", "invoice_suffix", "invoice_start_number", "sgst_rate", "cgst_rate",
	"session_timeout_mins", "two_factor_enabled", "two_factor_secret", "backup_codes", "created_at", "updated_at",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func newAuthService(t *testing.T, mock pgxmock.PgxPoolIface) *service.AuthService {
	t.Helper()
	enc, err := crypto.NewEncryptor("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	metrics := observability.NewNopMetrics()
	notifications := service.NewNotificationService(repository.NewNotificationRepository(mock), service.NewHub(log, metrics), log, metrics)
	return service.NewAuthService("jwt-secret-for-tests", "", "", service.AuthDeps{
		UserRepo:    repository.NewUserRepository(mock),
		SessionRepo: repository.NewSessionRepository(mock),
		Encryptor:   enc,
		Notifier:    notifications,
		Log:         log,
		Metrics:     metrics,
	})
}

func withUser(r *http.Request, userID, sessionID string) *http.Request {
	ctx := context.WithValue(r.Context(), contextkeys.UserID, userID)
	ctx = context.WithValue(ctx, contextkeys.SessionID, sessionID)
	return r.WithContext(ctx)
}

func TestError_MapsAppErrors(t *testing.T) {
	log, hook := test.NewNullLogger()
	SetLogger(log)

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"not found", domain.ErrNotFound("invoice not found"), http.StatusNotFound, `{"error":"invoice not found"}`},
		{"conflict", domain.ErrConflict("invoice number already exists"), http.StatusConflict, `{"error":"invoice number already exists"}`},
		{"internal hides cause", domain.ErrInternal("failed to list invoices", errors.New("conn reset")), http.StatusInternalServerError, `{"error":"Internal server error"}`},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
	assert.Len(t, hook.AllEntries(), 2)
}

func TestDecodeJSON_RejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var v map[string]any
	err := DecodeJSON(req, &v)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
}

func TestAuthHandler_LoginSetsHTTPOnlyCookies(t *testing.T) {
	mock := newMockPool(t)
	h := NewAuthHandler(newAuthService(t, mock), true)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM users WHERE lower\\(email\\)").
		WithArgs("asha@example.com").
		WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(
			"user-1", "Asha Rao", "asha@example.com", string(hash), domain.RoleUser, "", "", "", "",
			domain.FreePlanID, "NONE", 0, now,
			"INV", "", 1, 2.5, 2.5,
			60, false, "", []string{}, now, now,
		))
	mock.ExpectExec("INSERT INTO user_sessions").
		WithArgs(pgxmock.AnyArg(), "user-1", pgxmock.AnyArg(), pgxmock.AnyArg(), "203.0.113.9", pgxmock.AnyArg(),
			true, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body := `{"email":"asha@example.com","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), contextkeys.ClientIP, "203.0.113.9"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, AuthCookie)
	require.Contains(t, cookies, SessionCookie)
	assert.True(t, cookies[AuthCookie].HttpOnly)
	assert.True(t, cookies[AuthCookie].Secure)
	assert.InDelta(t, 3600, cookies[AuthCookie].MaxAge, 5)
	assert.NotContains(t, rec.Body.String(), cookies[AuthCookie].Value)
}

func TestAuthHandler_LogoutClearsCookies(t *testing.T) {
	mock := newMockPool(t)
	h := NewAuthHandler(newAuthService(t, mock), false)
	mock.ExpectExec("UPDATE user_sessions SET is_active = FALSE WHERE id = \\$1").
		WithArgs("sess-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rec := httptest.NewRecorder()
	h.Logout(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil), "user-1", "sess-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, c := range rec.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}
	assert.Len(t, rec.Result().Cookies(), 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	mock := newMockPool(t)
	h := NewAuthHandler(newAuthService(t, mock), false)

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"asha@example.com","password":"long enough"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"name is required"}`, rec.Body.String())
}

func TestCustomerHandler_GetMissingReturns404(t *testing.T) {
	mock := newMockPool(t)
	svc := service.NewCustomerService(repository.NewCustomerRepository(mock), repository.NewUserRepository(mock))
	h := NewCustomerHandler(svc)

	mock.ExpectQuery("WHERE c.id = \\$1 AND c.user_id").
		WithArgs("cust-9", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	r := chi.NewRouter()
	r.Get("/api/customers/{id}", h.Get)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/customers/cust-9", nil), "user-1", "sess-1"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"customer not found"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceHandler_ListRejectsUnknownStatus(t *testing.T) {
	log, _ := test.NewNullLogger()
	svc := service.NewInvoiceService(service.InvoiceDeps{DB: newMockPool(t), Log: log, Metrics: observability.NewNopMetrics()})
	h := NewInvoiceHandler(svc)

	rec := httptest.NewRecorder()
	h.List(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/invoices?status=lost", nil), "user-1", "sess-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(stubPinger{}, nil).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(stubPinger{}, stubPinger{err: errors.New("down")}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"ok","redis":"error"}`, rec.Body.String())
}

func TestNotificationHandler_StreamWritesDataFrames(t *testing.T) {
	log, _ := test.NewNullLogger()
	metrics := observability.NewNopMetrics()
	hub := service.NewHub(log, metrics)
	svc := service.NewNotificationService(repository.NewNotificationRepository(newMockPool(t)), hub, log, metrics)
	h := NewNotificationHandler(svc)
	h.heartbeat = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/notifications/stream", nil).WithContext(ctx), "user-1", "sess-1")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Stream(rec, req)
	}()

	require.Eventually(t, func() bool { return hub.Subscribers("user-1") == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(&domain.Notification{ID: "n-1", UserID: "user-1", Title: "Invoice paid", Type: domain.NotificationSuccess})
	hub.Publish(&domain.Notification{ID: "n-2", UserID: "user-2", Title: "Not yours"})
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	assert.Zero(t, hub.Subscribers("user-1"))
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var frames []domain.Notification
	heartbeats := 0
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			var n domain.Notification
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n))
			frames = append(frames, n)
		case line == ": heartbeat":
			heartbeats++
		}
	}
	require.Len(t, frames, 1)
	assert.Equal(t, "n-1", frames[0].ID)
	assert.Positive(t, heartbeats)
	assert.Contains(t, rec.Body.String(), "data: {\"id\":\"n-1\"")
	assert.True(t, strings.Contains(rec.Body.String(), "}\n\n"))
}

func TestAdminHandler_DeleteUserRefusesSelf(t *testing.T) {
	mock := newMockPool(t)
	h := NewAdminHandler(mock, newAuthService(t, mock))

	r := chi.NewRouter()
	r.Delete("/api/admin/users/{id}", h.DeleteUser)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodDelete, "/api/admin/users/admin-1", nil), "admin-1", "sess-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"cannot delete your own account"}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandler_GetStats(t *testing.T) {
	mock := newMockPool(t)
	h := NewAdminHandler(mock, newAuthService(t, mock))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM invoices").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM customers").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery("FROM subscriptions WHERE status IN").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SUM\\(total_amount\\)").WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(4200.5))

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":3,"invoices":12,"customers":5,"activeSubscriptions":2,"totalPaid":4200.5}`, rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
