package errors

import (
	"errors"
	"fmt"
	"net/http"

	"camlink/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeGatewayUnreachable ErrorCode = "GATEWAY_UNREACHABLE"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	appErr := NewAppError(code, message, httpStatus)
	appErr.Cause = err
	return appErr
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// FromDomain maps a domain sentinel error onto an AppError with the right
// HTTP status for the control API.
func FromDomain(err error) *AppError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrProfileNotFound):
		return WrapError(err, ErrCodeNotFound, "profile not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrMonitorNotFound):
		return WrapError(err, ErrCodeNotFound, "monitor not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrTokenExpired):
		return WrapError(err, ErrCodeUnauthorized, "gateway token expired", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrGatewayUnreachable):
		return WrapError(err, ErrCodeGatewayUnreachable, "gateway unreachable", http.StatusBadGateway)
	default:
		return WrapError(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
}

// GetAppError extracts an AppError from anywhere in the error chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
