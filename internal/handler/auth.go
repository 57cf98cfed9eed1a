package handler

import (
	"net/http"
	"time"

	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth         *service.AuthService
	cookieSecure bool
	now          func() time.Time
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{auth: auth, cookieSecure: cookieSecure, now: time.Now}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}

	meta := domain.LoginMeta{IP: clientIP(r), UserAgent: r.UserAgent()}
	resp, err := h.auth.Login(r.Context(), &req, meta)
	if err != nil {
		Error(w, err)
		return
	}
	if resp.RequiresTwoFactor {
		JSON(w, http.StatusOK, resp)
		return
	}

	maxAge := int(resp.ExpiresAt.Sub(h.now()).Seconds())
	h.setCookie(w, AuthCookie, resp.Token, maxAge)
	h.setCookie(w, SessionCookie, resp.SessionID, maxAge)
	JSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), userID(r), sessionID(r)); err != nil {
		Error(w, err)
		return
	}
	h.setCookie(w, AuthCookie, "", -1)
	h.setCookie(w, SessionCookie, "", -1)
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUserByID(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, user)
}

// ChangePassword handles POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), userID(r), &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(contextkeys.ClientIP).(string); ok && ip != "" {
		return ip
	}
	return r.RemoteAddr
}
