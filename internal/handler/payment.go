package handler

import (
	"net/http"

	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
)

// PaymentHandler handles plans, subscriptions and checkout.
type PaymentHandler struct {
	svc *service.SubscriptionService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc *service.SubscriptionService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Plans handles GET /api/plans.
func (h *PaymentHandler) Plans(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.svc.Plans())
}

// Current handles GET /api/subscription.
func (h *PaymentHandler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Current(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// History handles GET /api/subscription/history?limit=.
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.History(r.Context(), userID(r), queryInt(r, "limit", 50))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, history)
}

// SelectPlan handles POST /api/subscription/select.
func (h *PaymentHandler) SelectPlan(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectPlanRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.svc.SelectPlan(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Cancel handles POST /api/subscription/cancel.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), userID(r)); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CreateOrder handles POST /api/payment/create-order.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	resp, err := h.svc.CreateOrder(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Verify handles POST /api/payment/verify.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyPaymentRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.svc.VerifyPayment(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "subscription": sub})
}
