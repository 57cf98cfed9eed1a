package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
)

// SessionHandler manages login sessions and two-factor authentication.
type SessionHandler struct {
	auth *service.AuthService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(auth *service.AuthService) *SessionHandler {
	return &SessionHandler{auth: auth}
}

// List handles GET /api/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.auth.ListSessions(r.Context(), userID(r), sessionID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sessions)
}

// Terminate handles DELETE /api/sessions/{id}.
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.TerminateSession(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// TerminateOthers handles DELETE /api/sessions.
func (h *SessionHandler) TerminateOthers(w http.ResponseWriter, r *http.Request) {
	n, err := h.auth.TerminateOtherSessions(r.Context(), userID(r), sessionID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"terminated": n})
}

// SetupTwoFactor handles POST /api/auth/2fa/setup.
func (h *SessionHandler) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	resp, err := h.auth.SetupTwoFactor(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// EnableTwoFactor handles POST /api/auth/2fa/enable.
func (h *SessionHandler) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req domain.TwoFactorCodeRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	resp, err := h.auth.EnableTwoFactor(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// DisableTwoFactor handles POST /api/auth/2fa/disable.
func (h *SessionHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req domain.TwoFactorDisableRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.auth.DisableTwoFactor(r.Context(), userID(r), &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
