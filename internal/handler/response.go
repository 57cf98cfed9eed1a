package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/invoicely/backend/internal/contextkeys"
	"github.com/invoicely/backend/internal/domain"
	"github.com/sirupsen/logrus"
)

// Cookie names set on login.
const (
	AuthCookie    = "auth-token"
	SessionCookie = "session-id"
)

var errorLog = logrus.StandardLogger()

// SetLogger replaces the logger used for unhandled errors.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		errorLog = l
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			errorLog.WithError(err).Warn("failed to encode JSON response")
		}
	}
}

// Error writes an error JSON response, using AppError status codes when available.
// Server-side failures are logged and reported with a generic message.
func Error(w http.ResponseWriter, err error) {
	if appErr, ok := domain.AsAppError(err); ok && appErr.Public() {
		JSON(w, appErr.Code, map[string]string{"error": appErr.Message})
		return
	}
	errorLog.WithError(err).Error("unhandled error")
	JSON(w, http.StatusInternalServerError, map[string]string{"error": domain.MsgInternalError})
}

// DecodeJSON decodes a JSON request body into the given struct.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrBadRequest("invalid JSON body")
	}
	return nil
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(contextkeys.UserID).(string)
	return id
}

func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(contextkeys.SessionID).(string)
	return id
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
