package services

import (
	"errors"
	"net/http"
)

// AppError is a typed service failure carrying a status-like severity.
// The HTTP layer maps Code to a response status; the realtime layer maps
// any AppError to an `error` event on the acting connection only.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// ErrNotFound builds a not-found error. Absent entities and missing access
// are deliberately conflated to avoid existence probing.
func ErrNotFound(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message}
}

// ErrValidation builds a malformed-input error
func ErrValidation(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message}
}

// ErrConflict builds a duplicate-state error
func ErrConflict(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: message}
}

// ErrInternal builds an unexpected-failure error
func ErrInternal(message string) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message}
}

// CodeOf extracts the status code from an error, defaulting to 500
func CodeOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
