package middleware

import (
	"net/http"

	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/handler"
	"github.com/sirupsen/logrus"
)

// AdminOnly rejects callers without the admin role and logs the attempt.
// Must be mounted after Auth, which puts the role in the context.
func AdminOnly(log *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(contextkeys.UserRole).(string)
			if role != domain.RoleAdmin {
				uid, _ := r.Context().Value(contextkeys.UserID).(string)
				log.WithFields(logrus.Fields{
					"userId":    uid,
					"path":      r.URL.Path,
					"requestId": GetRequestID(r.Context()),
				}).Warn("admin route denied")
				handler.JSON(w, http.StatusForbidden, map[string]string{"error": "forbidden: admin access required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
