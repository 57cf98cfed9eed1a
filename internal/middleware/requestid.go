package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/invoicely/backend/internal/contextkeys"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with a correlation id, reusing a sane
// incoming one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextkeys.RequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the correlation id stored by RequestID.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.RequestID).(string)
	return id
}
