package http

import (
	"fmt"
	"net/http"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error { return e.Err }

// NewAppError creates a new application error.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// NotFoundError creates a 404 error.
func NotFoundError(message string) *AppError {
	return NewAppError("ERR_NOT_FOUND", message, http.StatusNotFound, nil)
}

// BadRequestError creates a 400 error.
func BadRequestError(message string, err error) *AppError {
	return NewAppError("ERR_BAD_REQUEST", message, http.StatusBadRequest, err)
}

// UnprocessableError creates a 422 error for requests rejected by a business rule.
func UnprocessableError(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusUnprocessableEntity, err)
}

// ConflictError creates a 409 error.
func ConflictError(message string, err error) *AppError {
	return NewAppError("ERR_CONFLICT", message, http.StatusConflict, err)
}

// InternalError creates a 500 error.
func InternalError(message string, err error) *AppError {
	return NewAppError("ERR_INTERNAL", message, http.StatusInternalServerError, err)
}
