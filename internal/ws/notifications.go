package ws

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/service"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
	sendBuffer   = 16
)

var errBacklog = errors.New("websocket backlog full")

// NotificationHandler streams a user's notifications over a WebSocket.
// The route sits behind the auth middleware, so the session cookie
// authenticates the upgrade request.
type NotificationHandler struct {
	hub      *service.Hub
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

// NewNotificationHandler creates a new NotificationHandler. Upgrades are
// accepted from same-host pages and from allowedOrigins.
func NewNotificationHandler(hub *service.Hub, log *logrus.Logger, allowedOrigins []string) *NotificationHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	h := &NotificationHandler{hub: hub, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
	return h
}

// Handle upgrades GET /api/notifications/ws and pushes each notification as
// a JSON text message until the client goes away.
func (h *NotificationHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(contextkeys.UserID).(string)
	if userID == "" {
		http.Error(w, domain.MsgUnauthorized, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("userId", userID).Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan *domain.Notification, sendBuffer)
	unsubscribe := h.hub.Subscribe(userID, func(n *domain.Notification) error {
		select {
		case send <- n:
			return nil
		default:
			return errBacklog
		}
	})
	defer unsubscribe()

	h.log.WithField("userId", userID).Debug("notification socket connected")

	// Reads only service control frames; the stream is one-way.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case n := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
