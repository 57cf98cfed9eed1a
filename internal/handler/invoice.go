package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
)

// InvoiceHandler handles invoice endpoints.
type InvoiceHandler struct {
	svc *service.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(svc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

// List handles GET /api/invoices?status=&customerId=&limit=&offset=.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.InvoiceFilter{
		Status:     domain.InvoiceStatus(strings.ToUpper(q.Get("status"))),
		CustomerID: q.Get("customerId"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	list, err := h.svc.List(r.Context(), userID(r), f)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, list)
}

// Create handles POST /api/invoices.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateInvoiceRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, inv)
}

// NextNumber handles GET /api/invoices/next-number.
func (h *InvoiceHandler) NextNumber(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.NextNumber(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, domain.NextNumberResponse{InvoiceNumber: n})
}

// Stats handles GET /api/invoices/stats.
func (h *InvoiceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// Get handles GET /api/invoices/{id}.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, inv)
}

// Update handles PUT /api/invoices/{id}.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateInvoiceRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	inv, err := h.svc.Update(r.Context(), userID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, inv)
}

// UpdateStatus handles PATCH /api/invoices/{id}/status.
func (h *InvoiceHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateInvoiceStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	inv, err := h.svc.UpdateStatus(r.Context(), userID(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/invoices/{id}.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
