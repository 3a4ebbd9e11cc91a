package dto

import "net/http"

// API error codes. Clients switch on these, so they never change meaning.
const (
	ErrCodeInternal        = "ERR_INTERNAL"
	ErrCodeExternalService = "ERR_EXTERNAL_SERVICE"
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeConflict        = "ERR_CONFLICT"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"

	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
)

var httpStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeExternalService: http.StatusBadGateway,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeConflict:        http.StatusConflict,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeTokenExpired:    http.StatusUnauthorized,
	ErrCodeTokenInvalid:    http.StatusUnauthorized,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// Domain error codes as raised by the domain and application layers.
// An invalid status transition and a lost optimistic-lock race are both
// conflicts from the caller's side.
var domainCodes = map[string]string{
	"VALIDATION_ERROR":       ErrCodeValidation,
	"INVALID_INPUT":          ErrCodeValidation,
	"NOT_FOUND":              ErrCodeNotFound,
	"CONFLICT":               ErrCodeConflict,
	"INVALID_STATE":          ErrCodeConflict,
	"CONCURRENCY_CONFLICT":   ErrCodeConflict,
	"EXTERNAL_SERVICE_ERROR": ErrCodeExternalService,
	"INTERNAL_ERROR":         ErrCodeInternal,
}

// HTTPStatus returns the status for an API error code, 500 when unknown
func HTTPStatus(code string) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromDomainCode maps a domain error code to the API code and its status.
// Unmapped codes are reported as internal errors.
func FromDomainCode(domainCode string) (string, int) {
	code, ok := domainCodes[domainCode]
	if !ok {
		code = ErrCodeInternal
	}
	return code, HTTPStatus(code)
}
