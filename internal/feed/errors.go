package feed

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound signals that the requested item does not exist or is not public.
var ErrNotFound = errors.New("item not found")

// Code is a stable, client-facing error identifier.
type Code string

// Error codes returned to clients.
const (
	CodeInvalidParam   Code = "INVALID_PARAM"
	CodeInvalidURL     Code = "INVALID_URL"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInvalidSession Code = "INVALID_SESSION"
	CodeSessionExpired Code = "SESSION_EXPIRED"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeUnauthorized   Code = "UNAUTHORIZED"
)

// Error is a structured protocol error carrying its HTTP status.
type Error struct {
	Code    Code   `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// InvalidParam builds a 400 INVALID_PARAM error.
func InvalidParam(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParam, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// InvalidURL builds a 400 INVALID_URL error.
func InvalidURL(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidURL, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a 404 NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidSession builds a 400 INVALID_SESSION error.
func InvalidSession(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidSession, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// SessionExpired builds a 410 SESSION_EXPIRED error.
func SessionExpired(format string, args ...any) *Error {
	return &Error{Code: CodeSessionExpired, Status: http.StatusGone, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized builds a 401 UNAUTHORIZED error.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps cause as a 500 INTERNAL_ERROR.
func Internal(cause error, msg string) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg, cause: cause}
}

// AsError maps any error onto a protocol error. Unknown errors become
// INTERNAL_ERROR so callers never leak internal details.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, ErrNotFound) {
		return NotFound("content not found")
	}
	return Internal(err, "internal error")
}
