// Package errors defines the gateway's error taxonomy. Every error that can
// reach an HTTP caller is an *AppError carrying a stable machine-readable code.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeAuth          ErrorType = "authentication"
	ErrTypeForbidden     ErrorType = "forbidden"
	ErrTypeRateLimit     ErrorType = "rate_limit"
	ErrTypeCache         ErrorType = "cache"
	ErrTypeDelivery      ErrorType = "delivery"
	ErrTypeConfiguration ErrorType = "configuration"
	ErrTypeValidation    ErrorType = "validation"
	ErrTypeNotFound      ErrorType = "not_found"
	ErrTypeConflict      ErrorType = "conflict"
	ErrTypeConnection    ErrorType = "connection"
	ErrTypeTimeout       ErrorType = "timeout"
	ErrTypeInternal      ErrorType = "internal"
)

// Stable codes returned to API callers.
const (
	CodeInvalidCredentials   = "invalid_credentials"
	CodeTokenExpired         = "token_expired"
	CodeTokenRevoked         = "token_revoked"
	CodeTokenMalformed       = "token_malformed"
	CodeRefreshInvalid       = "refresh_invalid"
	CodeInsufficientScope    = "insufficient_scope"
	CodeRateLimited          = "rate_limited"
	CodeCacheUnavailable     = "cache_unavailable"
	CodeDeliveryFailed       = "delivery_failed"
	CodeDeliveryTimeout      = "delivery_timeout"
	CodeInvalidConfiguration = "invalid_configuration"
	CodeInvalidRequest       = "invalid_request"
	CodeNotFound             = "not_found"
	CodeConflict             = "conflict"
	CodeInternal             = "internal_error"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
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

// WithCode overrides the error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause attaches an underlying error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// AuthError creates an authentication failure. code is one of the Code*
// constants for credentials or tokens.
func AuthError(code, msg string) *AppError {
	return &AppError{Type: ErrTypeAuth, Code: code, Message: msg}
}

// ForbiddenError is returned when a valid principal lacks a scope.
func ForbiddenError(scope string) *AppError {
	return &AppError{
		Type:    ErrTypeForbidden,
		Code:    CodeInsufficientScope,
		Message: fmt.Sprintf("token lacks required scope %q", scope),
	}
}

// RateLimitError creates a new rate limit error
func RateLimitError(msg string) *AppError {
	return &AppError{Type: ErrTypeRateLimit, Code: CodeRateLimited, Message: msg}
}

// CacheError wraps a cache backend failure. It is never returned to callers.
func CacheError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeCache, Code: CodeCacheUnavailable, Message: msg, Cause: cause}
}

// DeliveryError describes a failed webhook delivery attempt.
func DeliveryError(code, msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeDelivery, Code: code, Message: msg, Cause: cause}
}

// ConfigurationError rejects an invalid caller-supplied configuration such as
// a malformed webhook URL.
func ConfigurationError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfiguration, Code: CodeInvalidConfiguration, Message: msg}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Code: CodeInvalidRequest, Message: msg}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ConflictError reports a uniqueness violation.
func ConflictError(msg string) *AppError {
	return &AppError{Type: ErrTypeConflict, Code: CodeConflict, Message: msg}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Code: CodeInternal, Message: msg, Cause: cause}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Code:    CodeInternal,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Code: CodeInternal, Message: msg, Cause: cause}
}

// As finds the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrTypeInternal
}

// CodeOf returns the stable code for err, or CodeInternal for foreign errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok && appErr.Code != "" {
		return appErr.Code
	}
	return CodeInternal
}
