package handler

import "github.com/erp/invoicing/internal/interfaces/http/dto"

// APIResponse documents dto.Response with a concrete data type for swag
type APIResponse[T any] struct {
	Success bool           `json:"success" example:"true"`
	Data    T              `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}

// ErrorResponse documents the failure shape of dto.Response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
