package errors

import "net/http"

// AppError is a custom error type that includes an HTTP status code
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// NewAppError creates a new AppError
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// ValidationError carries field-level messages so the UI can render them
// inline next to the offending inputs.
type ValidationError struct {
	Fields map[string]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field, keeping only the first one per field.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Common errors
var (
	ErrInvalidRequest = NewAppError(http.StatusBadRequest, "Invalid request parameters")
	ErrUnauthorized   = NewAppError(http.StatusUnauthorized, "Unauthorized access")
	ErrForbidden      = NewAppError(http.StatusForbidden, "Access denied")
	ErrNotFound       = NewAppError(http.StatusNotFound, "Resource not found")
	ErrInternalServer = NewAppError(http.StatusInternalServerError, "Internal server error")
	ErrRateLimit      = NewAppError(http.StatusTooManyRequests, "Rate limit exceeded")
)

// Helper functions to create specific errors
func BadRequest(msg string) *AppError {
	return NewAppError(http.StatusBadRequest, msg)
}

func NotFound(msg string) *AppError {
	return NewAppError(http.StatusNotFound, msg)
}

func Unauthorized(msg string) *AppError {
	return NewAppError(http.StatusUnauthorized, msg)
}

// Gone signals a link blocked by policy (inactive, expired, capped).
func Gone(msg string) *AppError {
	return NewAppError(http.StatusGone, msg)
}

func Internal(msg string) *AppError {
	return NewAppError(http.StatusInternalServerError, msg)
}
