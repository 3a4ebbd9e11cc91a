package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context. The HTTP layer maps them to
// status codes in dto.FromDomainCode.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithCause returns a copy of the error carrying cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// NewValidationError reports malformed input such as a bad id or recipient address
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// NewNotFoundError reports an unknown resource of the given kind
func NewNotFoundError(resource string) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError reports an operation that is illegal in the current state
func NewConflictError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConflict, fmt.Sprintf(format, args...))
}

// NewExternalServiceError reports a failed call to a collaborator outside the system
func NewExternalServiceError(service string, cause error) *DomainError {
	return NewDomainError(CodeExternalService, fmt.Sprintf("%s is unavailable", service)).WithCause(cause)
}

// NewInternalError reports an unexpected failure
func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(CodeInternal, message).WithCause(cause)
}

// ErrorCode extracts the domain error code from err, or CodeInternal
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)
