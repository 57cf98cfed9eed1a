package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua      string
		device  string
		browser string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", "Desktop", "Chrome"},
		{"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "Desktop", "Edge"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "Mobile", "Safari"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Desktop", "Firefox"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Safari/604.1", "Tablet", "Safari"},
		{"", "Unknown", "Unknown"},
	}

	for _, tt := range tests {
		device, browser := ParseUserAgent(tt.ua)
		assert.Equal(t, tt.device, device, tt.ua)
		assert.Equal(t, tt.browser, browser, tt.ua)
	}
}

func TestNewUserSession(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewUserSession("u1", LoginMeta{IP: "10.0.0.1", UserAgent: "curl/8.0"}, 30*time.Minute, now)

	assert.True(t, s.IsActive)
	assert.Equal(t, now.Add(30*time.Minute), s.ExpiresAt)
	assert.False(t, s.Expired(now.Add(29*time.Minute)))
	assert.True(t, s.Expired(now.Add(30*time.Minute)))
	assert.Equal(t, "10.0.0.1", s.IPAddress)
}

func TestUser_SessionTimeout(t *testing.T) {
	u := &User{}
	assert.Equal(t, 24*time.Hour, u.SessionTimeout())
	u.SessionTimeoutMins = 15
	assert.Equal(t, 15*time.Minute, u.SessionTimeout())
}
