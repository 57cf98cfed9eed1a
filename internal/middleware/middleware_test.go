package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/handler"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuthenticator struct {
	token string
	err   error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.JWTClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token != s.token {
		return nil, domain.ErrUnauthorized(domain.MsgUnauthorized)
	}
	return &domain.JWTClaims{Sub: "user-1", Email: "asha@example.com", Role: domain.RoleUser, SessionID: "sess-1"}, nil
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	uid, _ := r.Context().Value(contextkeys.UserID).(string)
	sid, _ := r.Context().Value(contextkeys.SessionID).(string)
	_, _ = w.Write([]byte(uid + "/" + sid))
}

func TestAuth_AcceptsCookieAndBearer(t *testing.T) {
	h := Auth(stubAuthenticator{token: "good"})(http.HandlerFunc(echoUser))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: handler.AuthCookie, Value: "good"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1/sess-1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_RejectsMissingOrBadToken(t *testing.T) {
	h := Auth(stubAuthenticator{token: "good"})(http.HandlerFunc(echoUser))

	for _, header := range []string{"", "Bearer bad", "Basic Zm9vOmJhcg=="} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	}
}

func TestAuth_StoreFailureIsNotAnAuthFailure(t *testing.T) {
	h := Auth(stubAuthenticator{err: domain.ErrInternal("failed to check session", errors.New("db down"))})(http.HandlerFunc(echoUser))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminOnly(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := AdminOnly(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), contextkeys.UserRole, domain.RoleUser)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "/api/admin/users", hook.LastEntry().Data["path"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), contextkeys.UserRole, domain.RoleAdmin)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecovery_ReturnsGeneric500(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := RequestID(Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.NotEmpty(t, hook.LastEntry().Data["requestId"])
}

func TestLogger_RecordsStatus(t *testing.T) {
	log, hook := test.NewNullLogger()
	h := Logger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, http.StatusNotFound, hook.LastEntry().Data["status"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRequestID_ReusesIncoming(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = GetRequestID(r.Context()) }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	log, _ := test.NewNullLogger()
	rl := NewRateLimiter(1, 2)
	h := RateLimit(rl, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return start }
	_, _ = rl.Allow(context.Background(), "a")

	rl.now = func() time.Time { return start.Add(5 * time.Minute) }
	_, _ = rl.Allow(context.Background(), "b")

	assert.Equal(t, 1, rl.prune(3*time.Minute))
	assert.Len(t, rl.visitors, 1)
}

func newRedisLimiter(t *testing.T, limit int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, limit, time.Minute, "test"), mr
}

func TestRedisRateLimiter_WindowIsShared(t *testing.T) {
	rl, mr := newRedisLimiter(t, 2)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		ok, err := rl.Allow(ctx, "198.51.100.7")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i)
	}
	remaining, err := rl.Remaining(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.Zero(t, remaining)
	assert.Equal(t, time.Minute, mr.TTL("test:198.51.100.7"))

	mr.FastForward(time.Minute + time.Second)
	ok, err := rl.Allow(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	rl, mr := newRedisLimiter(t, 1)
	mr.Close()

	log, hook := test.NewNullLogger()
	h := RateLimit(rl, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestRealIP_PrefersProxyHeaders(t *testing.T) {
	var seen string
	h := RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(contextkeys.ClientIP).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.1", seen)
}
