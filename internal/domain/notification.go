package domain

import "time"

// NotificationType is the severity shown to the user.
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
)

// NotificationCategory groups notifications by the flow that produced them.
type NotificationCategory string

const (
	CategoryInvoice      NotificationCategory = "INVOICE"
	CategoryPayment      NotificationCategory = "PAYMENT"
	CategorySecurity     NotificationCategory = "SECURITY"
	CategorySubscription NotificationCategory = "SUBSCRIPTION"
	CategorySystem       NotificationCategory = "SYSTEM"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	Type      NotificationType     `json:"type"`
	Category  NotificationCategory `json:"category"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Read      bool                 `json:"read"`
	Metadata  map[string]any       `json:"metadata,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// CreateNotificationInput is what producers hand to the notification service.
type CreateNotificationInput struct {
	UserID   string
	Type     NotificationType
	Category NotificationCategory
	Title    string
	Message  string
	Metadata map[string]any
}

// TestNotificationRequest lets a user trigger a notification to check delivery.
type TestNotificationRequest struct {
	Title   string           `json:"title" validate:"max=200"`
	Message string           `json:"message" validate:"max=1000"`
	Type    NotificationType `json:"type" validate:"omitempty,oneof=INFO SUCCESS WARNING ERROR"`
}

// UnreadCountResponse reports unread notifications.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
