package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/repository"
	"github.com/invoicely/backend/internal/service"
)

// AdminHandler serves user management and platform-wide figures to administrators.
type AdminHandler struct {
	db      repository.DB
	authSvc *service.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db repository.DB, authSvc *service.AuthService) *AdminHandler {
	return &AdminHandler{db: db, authSvc: authSvc}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.authSvc.CountUsers(r.Context())
	if err != nil {
		Error(w, err)
		return
	}

	var invoices, customers, subscriptions int
	var billed float64
	counts := []struct {
		query string
		dest  any
	}{
		{"SELECT COUNT(*) FROM invoices", &invoices},
		{"SELECT COUNT(*) FROM customers", &customers},
		{"SELECT COUNT(*) FROM subscriptions WHERE status IN ('ACTIVE', 'TRIAL')", &subscriptions},
		{"SELECT COALESCE(SUM(total_amount), 0)::float8 FROM invoices WHERE status = 'PAID'", &billed},
	}
	for _, c := range counts {
		if err := h.db.QueryRow(r.Context(), c.query).Scan(c.dest); err != nil {
			errorLog.WithError(err).WithField("query", c.query).Warn("admin stats query failed")
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"users":               users,
		"invoices":            invoices,
		"customers":           customers,
		"activeSubscriptions": subscriptions,
		"totalPaid":           billed,
	})
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authSvc.ListUsers(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, users)
}

// CreateUser handles POST /api/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	user, err := h.authSvc.CreateUser(r.Context(), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, user)
}

// DeleteUser handles DELETE /api/admin/users/{id}.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == userID(r) {
		Error(w, domain.ErrBadRequest("cannot delete your own account"))
		return
	}
	if err := h.authSvc.DeleteUser(r.Context(), id); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
