package utils

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorKind separates failures by where they happened, so call sites can decide
// what to show the user.
type ErrorKind string

const (
	// KindTransport means no response reached us (offline, timeout, refused).
	KindTransport ErrorKind = "transport"
	// KindServer means the API answered with a non-2xx status.
	KindServer ErrorKind = "server"
	// KindValidation means the request was blocked before dispatch.
	KindValidation ErrorKind = "validation"
	// KindUnexpected covers everything else (bad JSON, programming errors).
	KindUnexpected ErrorKind = "unexpected"
)

type AppError struct {
	Kind    ErrorKind
	Code    string
	Status  int    // HTTP status for server errors, 0 otherwise
	Message string // server-provided message for server errors
	Origin  error  // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the client
const (
	// Transport errors
	ErrNetwork = "NETWORK"
	ErrTimeout = "TIMEOUT"

	// Server errors, derived from the response status
	ErrBadRequest   = "BAD_REQUEST"
	ErrUnauthorized = "UNAUTHORIZED"
	ErrForbidden    = "FORBIDDEN"
	ErrNotFound     = "NOT_FOUND"
	ErrConflict     = "CONFLICT"
	ErrRateLimited  = "TOO_MANY_REQUESTS"
	ErrServer       = "SERVER_ERROR"

	// Client-side validation
	ErrInvalidInput = "INVALID_INPUT"
	ErrEmptyPost    = "EMPTY_POST"
	ErrEmptyComment = "EMPTY_COMMENT"
	ErrNoChanges    = "NO_CHANGES"
	ErrPending      = "PENDING" // same action already in flight for this target
	ErrNoSession    = "NO_SESSION"

	ErrDecode = "DECODE"
)

// GenericFailureMessage is what users see when the server gave us nothing better.
const GenericFailureMessage = "Something went wrong"

// Error creation helper functions
func NewAppError(kind ErrorKind, code string, message string, originalErr error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewTransportError(op string, originalErr error) *AppError {
	code := ErrNetwork
	if isTimeout(originalErr) {
		code = ErrTimeout
	}
	return &AppError{
		Kind:    KindTransport,
		Code:    code,
		Message: "request failed: " + op,
		Origin:  originalErr,
	}
}

// NewServerError builds an error from a non-2xx response. message is the
// server's {message} field and may be empty.
func NewServerError(status int, message string) *AppError {
	return &AppError{
		Kind:    KindServer,
		Code:    HTTPStatusToCode(status),
		Status:  status,
		Message: message,
	}
}

func NewValidationError(code string, message string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    code,
		Message: message,
	}
}

func NewDecodeError(op string, originalErr error) *AppError {
	return &AppError{
		Kind:    KindUnexpected,
		Code:    ErrDecode,
		Message: fmt.Sprintf("failed to decode %s response", op),
		Origin:  originalErr,
	}
}

func NewPendingError(action, target string) *AppError {
	return NewValidationError(ErrPending, fmt.Sprintf("%s already in progress for %s", action, target))
}

// AsAppError unwraps err looking for an *AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Helper method to check if an error is of a specific code
func IsErrorCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

func IsKind(err error, kind ErrorKind) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Kind == kind
	}
	return false
}

func IsTransportError(err error) bool  { return IsKind(err, KindTransport) }
func IsServerError(err error) bool     { return IsKind(err, KindServer) }
func IsValidationError(err error) bool { return IsKind(err, KindValidation) }

// Helper method to check if an error is related to authentication
func IsAuthError(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == ErrUnauthorized ||
			appErr.Code == ErrForbidden ||
			appErr.Code == ErrNoSession
	}
	return false
}

// UserMessage picks the text to show for err: the server's own message when it
// sent one, the validation message for blocked input, a generic message otherwise.
func UserMessage(err error) string {
	appErr, ok := AsAppError(err)
	if !ok {
		return GenericFailureMessage
	}
	switch appErr.Kind {
	case KindServer, KindValidation:
		if appErr.Message != "" {
			return appErr.Message
		}
	}
	return GenericFailureMessage
}

// HTTPStatusToCode converts an HTTP status code to an AppError code.
func HTTPStatusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrServer
	}
}

type timeout interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var t timeout
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}
