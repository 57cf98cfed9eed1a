package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/invoicely/backend/internal/domain"
	"github.com/invoicely/backend/internal/observability"
	"github.com/invoicely/backend/internal/repository"
	"github.com/sirupsen/logrus"
)

// Subscriber receives notifications pushed to a connected client.
type Subscriber func(n *domain.Notification) error

// Hub is the in-process registry of notification subscribers keyed by user.
// Delivery is best-effort and local to this process.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[uint64]Subscriber
	nextID  uint64
	log     *logrus.Logger
	metrics *observability.Metrics
}

// NewHub creates an empty hub.
func NewHub(log *logrus.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]map[uint64]Subscriber),
		log:     log,
		metrics: metrics,
	}
}

// Subscribe registers fn for the user's notifications. The returned
// function removes the registration and may be called more than once.
func (h *Hub) Subscribe(userID string, fn Subscriber) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[uint64]Subscriber)
	}
	h.subs[userID][id] = fn
	h.mu.Unlock()
	h.metrics.NotificationSubscribers.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], id)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			h.metrics.NotificationSubscribers.Dec()
		})
	}
}

// Subscribers returns how many callbacks are registered for the user.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Publish delivers n to every subscriber of its user. A failing or
// panicking subscriber does not affect the others.
func (h *Hub) Publish(n *domain.Notification) {
	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs[n.UserID]))
	for _, fn := range h.subs[n.UserID] {
		targets = append(targets, fn)
	}
	h.mu.Unlock()

	for _, fn := range targets {
		h.deliver(fn, n)
	}
}

func (h *Hub) deliver(fn Subscriber, n *domain.Notification) {
	defer func() {
		if r := recover(); r != nil {
			h.metrics.NotificationDeliveries.WithLabelValues("panic").Inc()
			h.log.WithFields(logrus.Fields{"userId": n.UserID, "notificationId": n.ID}).
				Errorf("notification subscriber panicked: %v", r)
		}
	}()
	if err := fn(n); err != nil {
		h.metrics.NotificationDeliveries.WithLabelValues("failed").Inc()
		h.log.WithFields(logrus.Fields{"userId": n.UserID, "notificationId": n.ID}).
			Warnf("notification delivery failed: %v", err)
		return
	}
	h.metrics.NotificationDeliveries.WithLabelValues("delivered").Inc()
}

// NotificationService persists notifications and fans them out through the hub.
type NotificationService struct {
	repo    *repository.NotificationRepository
	hub     *Hub
	log     *logrus.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo *repository.NotificationRepository, hub *Hub, log *logrus.Logger, metrics *observability.Metrics) *NotificationService {
	return &NotificationService{repo: repo, hub: hub, log: log, metrics: metrics, now: time.Now}
}

// Hub exposes the subscriber registry to the stream handlers.
func (s *NotificationService) Hub() *Hub {
	return s.hub
}

// Create stores a notification and then pushes it to the user's subscribers.
// Persistence errors are returned; delivery errors never are.
func (s *NotificationService) Create(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	if in.Type == "" {
		in.Type = domain.NotificationInfo
	}
	if in.Category == "" {
		in.Category = domain.CategorySystem
	}
	n := &domain.Notification{
		ID:        domain.NewID(),
		UserID:    in.UserID,
		Type:      in.Type,
		Category:  in.Category,
		Title:     in.Title,
		Message:   in.Message,
		Metadata:  in.Metadata,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}
	s.metrics.NotificationsCreated.WithLabelValues(string(n.Category)).Inc()

	s.hub.Publish(n)
	return n, nil
}

// Notify is Create for callers that treat notifications as a side channel:
// failures are logged and dropped.
func (s *NotificationService) Notify(ctx context.Context, in domain.CreateNotificationInput) {
	if _, err := s.Create(ctx, in); err != nil {
		s.log.WithFields(logrus.Fields{"userId": in.UserID, "category": in.Category}).
			Warnf("notification dropped: %v", err)
	}
}

// List returns the user's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	list, err := s.repo.List(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, domain.ErrInternal("failed to list notifications", err)
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return list, nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, domain.ErrInternal("failed to count notifications", err)
	}
	return n, nil
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to update notification", err)
	}
	if !ok {
		return domain.ErrNotFound("notification not found")
	}
	return nil
}

// MarkAllRead marks all of the user's notifications read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, domain.ErrInternal("failed to update notifications", err)
	}
	return n, nil
}

// Delete removes a notification.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete notification", err)
	}
	if !ok {
		return domain.ErrNotFound("notification not found")
	}
	return nil
}

// SendTest creates a notification on demand so a user can check delivery.
func (s *NotificationService) SendTest(ctx context.Context, userID string, req *domain.TestNotificationRequest) (*domain.Notification, error) {
	in := domain.CreateNotificationInput{
		UserID:   userID,
		Type:     req.Type,
		Category: domain.CategorySystem,
		Title:    req.Title,
		Message:  req.Message,
	}
	if in.Title == "" {
		in.Title = "Test notification"
	}
	if in.Message == "" {
		in.Message = "Notifications are working."
	}
	n, err := s.Create(ctx, in)
	if err != nil {
		return nil, domain.ErrInternal("failed to create notification", err)
	}
	return n, nil
}
