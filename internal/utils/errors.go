package utils

import "net/http"

// AppError is a caller-visible error carrying the HTTP status it maps to.
type AppError struct {
	StatusCode int
	Message    string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewBadRequestError covers input errors: no artifact and no text,
// unsupported media type, oversized upload.
func NewBadRequestError(message string) *AppError {
	return &AppError{StatusCode: http.StatusBadRequest, Message: message}
}

// NewUnprocessableError covers extraction errors: the artifact was accepted
// but produced no usable text.
func NewUnprocessableError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnprocessableEntity, Message: message}
}

// NewUnauthorizedError covers missing or invalid credentials. The message is
// deliberately generic; it never reveals whether a resource exists.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{StatusCode: http.StatusUnauthorized, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{StatusCode: http.StatusNotFound, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{StatusCode: http.StatusInternalServerError, Message: message}
}
