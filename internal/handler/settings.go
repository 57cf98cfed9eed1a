package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
)

// SettingsHandler handles account settings and saved payment methods.
type SettingsHandler struct {
	settings *service.SettingsService
	methods  *service.PaymentMethodService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settings *service.SettingsService, methods *service.PaymentMethodService) *SettingsHandler {
	return &SettingsHandler{settings: settings, methods: methods}
}

// Get handles GET /api/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.settings.Get(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// UpdateProfile handles PUT /api/settings/profile.
func (h *SettingsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.settings.UpdateProfile(r.Context(), userID(r), &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, req)
}

// UpdateInvoice handles PUT /api/settings/invoice.
func (h *SettingsHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceSettings
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.settings.UpdateInvoiceSettings(r.Context(), userID(r), &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, req)
}

// UpdateSession handles PUT /api/settings/session.
func (h *SettingsHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.SessionSettings
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.settings.UpdateSessionSettings(r.Context(), userID(r), &req); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, req)
}

// ListPaymentMethods handles GET /api/payment-methods.
func (h *SettingsHandler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	list, err := h.methods.List(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, list)
}

// AddPaymentMethod handles POST /api/payment-methods.
func (h *SettingsHandler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req domain.CreatePaymentMethodRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	m, err := h.methods.Add(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, m)
}

// SetDefaultPaymentMethod handles POST /api/payment-methods/{id}/default.
func (h *SettingsHandler) SetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := h.methods.SetDefault(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeletePaymentMethod handles DELETE /api/payment-methods/{id}.
func (h *SettingsHandler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := h.methods.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
