package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/handler"
)

// Authenticator resolves a bearer token to the claims of a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.JWTClaims, error)
}

// Auth creates a JWT authentication middleware. The token is read from the
// auth cookie first, then from an Authorization bearer header.
func Auth(authn Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w)
				return
			}

			claims, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if domain.StatusOf(err) >= http.StatusInternalServerError {
					handler.Error(w, err)
					return
				}
				unauthorized(w)
				return
			}

			// Store user info in context using typed keys
			ctx := context.WithValue(r.Context(), contextkeys.UserID, claims.Sub)
			ctx = context.WithValue(ctx, contextkeys.UserEmail, claims.Email)
			ctx = context.WithValue(ctx, contextkeys.UserRole, claims.Role)
			ctx = context.WithValue(ctx, contextkeys.SessionID, claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(handler.AuthCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": domain.MsgUnauthorized})
}
