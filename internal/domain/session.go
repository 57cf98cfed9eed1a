package domain

import (
	"strings"
	"time"
)

// UserSession tracks one logged-in device.
type UserSession struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Device     string    `json:"device"`
	Browser    string    `json:"browser"`
	IPAddress  string    `json:"ipAddress"`
	UserAgent  string    `json:"userAgent"`
	IsActive   bool      `json:"isActive"`
	Current    bool      `json:"current"`
	LastActive time.Time `json:"lastActive"`
	ExpiresAt  time.Time `json:"expiresAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *UserSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NewUserSession builds an active session for a login.
func NewUserSession(userID string, meta LoginMeta, timeout time.Duration, now time.Time) *UserSession {
	device, browser := ParseUserAgent(meta.UserAgent)
	return &UserSession{
		ID:         NewID(),
		UserID:     userID,
		Device:     device,
		Browser:    browser,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
		IsActive:   true,
		LastActive: now,
		ExpiresAt:  now.Add(timeout),
		CreatedAt:  now,
	}
}

// ParseUserAgent extracts a coarse device class and browser name.
func ParseUserAgent(ua string) (device, browser string) {
	l := strings.ToLower(ua)

	switch {
	case strings.Contains(l, "ipad") || strings.Contains(l, "tablet"):
		device = "Tablet"
	case strings.Contains(l, "mobile") || strings.Contains(l, "android") || strings.Contains(l, "iphone"):
		device = "Mobile"
	case l == "":
		device = "Unknown"
	default:
		device = "Desktop"
	}

	// Order matters: Edge and Opera also advertise Chrome, Chrome advertises Safari.
	switch {
	case strings.Contains(l, "edg/"):
		browser = "Edge"
	case strings.Contains(l, "opr/") || strings.Contains(l, "opera"):
		browser = "Opera"
	case strings.Contains(l, "firefox/"):
		browser = "Firefox"
	case strings.Contains(l, "chrome/"):
		browser = "Chrome"
	case strings.Contains(l, "safari/"):
		browser = "Safari"
	default:
		browser = "Unknown"
	}
	return device, browser
}
