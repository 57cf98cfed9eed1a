package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
)

const (
	streamBuffer      = 16
	heartbeatInterval = 30 * time.Second
)

var errStreamBacklog = errors.New("stream backlog full")

// NotificationHandler handles in-app notification endpoints and the SSE stream.
type NotificationHandler struct {
	svc       *service.NotificationService
	heartbeat time.Duration
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc, heartbeat: heartbeatInterval}
}

// List handles GET /api/notifications?unread=true&limit=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	unread := r.URL.Query().Get("unread") == "true"
	list, err := h.svc.List(r.Context(), userID(r), unread, queryInt(r, "limit", 50))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, domain.UnreadCountResponse{Count: n})
}

// MarkRead handles PATCH /api/notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MarkAllRead handles POST /api/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Test handles POST /api/notifications/test.
func (h *NotificationHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req domain.TestNotificationRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	n, err := h.svc.SendTest(r.Context(), userID(r), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, n)
}

// Stream handles GET /api/notifications/stream as Server-Sent Events.
// Each notification is written as one "data: <json>" frame; a comment line
// goes out on every heartbeat tick so idle proxies keep the connection open.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, domain.ErrInternal("streaming unsupported", nil))
		return
	}

	events := make(chan *domain.Notification, streamBuffer)
	unsubscribe := h.svc.Hub().Subscribe(userID(r), func(n *domain.Notification) error {
		select {
		case events <- n:
			return nil
		default:
			return errStreamBacklog
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case n := <-events:
			data, err := json.Marshal(n)
			if err != nil {
				errorLog.WithError(err).Warn("failed to encode notification")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
