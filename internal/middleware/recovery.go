package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/handler"
	"github.com/sirupsen/logrus"
)

// Recovery catches panics and returns a 500 error instead of crashing the server.
func Recovery(log *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.WithFields(logrus.Fields{
						"requestId": GetRequestID(r.Context()),
						"path":      r.URL.Path,
						"stack":     string(debug.Stack()),
					}).Errorf("panic: %v", err)
					handler.JSON(w, http.StatusInternalServerError, map[string]string{
						"error": domain.MsgInternalError,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
