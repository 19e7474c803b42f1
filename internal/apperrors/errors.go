package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-visible error identifier.
type Code string

const (
	CodeAuthenticationRequired Code = "AUTHENTICATION_REQUIRED"
	CodeNotParticipant         Code = "NOT_PARTICIPANT"
	CodeNotFound               Code = "NOT_FOUND"
	CodePermissionDenied       Code = "PERMISSION_DENIED"
	CodeValidation             Code = "VALIDATION_ERROR"
	CodeConflict               Code = "CONFLICT"
	CodeRateLimited            Code = "RATE_LIMITED"
	CodeInternal               Code = "INTERNAL_ERROR"
)

// Error is an error carrying a taxonomy code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code and message, so package level
// sentinels can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrAuthenticationRequired = New(CodeAuthenticationRequired, "authentication required")
	ErrRateLimited            = New(CodeRateLimited, "too many events")
	ErrInternal               = New(CodeInternal, "internal error")
)

// Inaccessible is the message shared by NotFound and NotParticipant so that a
// caller cannot tell a missing chat from one they do not belong to.
const Inaccessible = "chat not found or access denied"

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Public returns the code and message safe to show to a client.
func Public(err error) (Code, string) {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Code == CodeInternal {
		return CodeInternal, ErrInternal.Message
	}
	switch appErr.Code {
	case CodeNotFound, CodeNotParticipant:
		return appErr.Code, Inaccessible
	}
	return appErr.Code, appErr.Message
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case CodeNotParticipant, CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
