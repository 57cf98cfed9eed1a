package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Messages shared by every surface that reports them.
const (
	MsgUnauthorized  = "Unauthorized"
	MsgInternalError = "Internal server error"
	MsgRateLimited   = "Too many requests, please try again later"
)

// AppError carries the HTTP status a failure should surface as. Only the
// message reaches clients; Err stays server-side.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Public reports whether the message may be shown to the caller.
func (e *AppError) Public() bool { return e.Code < http.StatusInternalServerError }

func newAppError(code int, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func ErrBadRequest(msg string) *AppError { return newAppError(http.StatusBadRequest, msg) }

// ErrValidation reports a schema mismatch. Clients get 400 with the first message.
func ErrValidation(msg string) *AppError { return newAppError(http.StatusBadRequest, msg) }

func ErrUnauthorized(msg string) *AppError { return newAppError(http.StatusUnauthorized, msg) }

// ErrForbidden covers missing roles as well as exhausted plan quotas.
func ErrForbidden(msg string) *AppError { return newAppError(http.StatusForbidden, msg) }

func ErrNotFound(msg string) *AppError { return newAppError(http.StatusNotFound, msg) }

func ErrConflict(msg string) *AppError { return newAppError(http.StatusConflict, msg) }

func ErrTooManyRequests() *AppError {
	return newAppError(http.StatusTooManyRequests, MsgRateLimited)
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError extracts the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf maps err to an HTTP status. Anything that is not an AppError is a 500.
func StatusOf(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
