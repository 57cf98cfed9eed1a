package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// UserID is the context key for the authenticated user's ID.
	UserID contextKey = "userID"
	// UserEmail is the context key for the authenticated user's email.
	UserEmail contextKey = "userEmail"
	// UserRole is the context key for the authenticated user's role.
	UserRole contextKey = "userRole"
	// SessionID is the context key for the login session backing the request.
	SessionID contextKey = "sessionID"
	// RequestID is the context key for the per-request correlation id.
	RequestID contextKey = "requestID"
	// ClientIP is the context key for the proxy-aware client address.
	ClientIP contextKey = "clientIP"
)
