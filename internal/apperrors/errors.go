package apperrors

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeUpstream     Code = "UPSTREAM_FAILED"
)

// AppError is an operational error that is safe to show to the client.
type AppError struct {
	Code    Code
	Message string
	Status  int
	Fields  map[string]string
}

func (e *AppError) Error() string {
	return e.Message
}

func New(code Code, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

func Validation(message string, fields map[string]string) *AppError {
	return &AppError{Code: CodeValidation, Status: http.StatusBadRequest, Message: message, Fields: fields}
}

// BadRequest is a validation failure without field detail.
func BadRequest(message string) *AppError {
	return Validation(message, nil)
}

// Field is a validation failure on a single request field.
func Field(field, message string) *AppError {
	return Validation(message, map[string]string{field: message})
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, http.StatusConflict, message)
}

func RateLimited(message string) *AppError {
	return New(CodeRateLimited, http.StatusTooManyRequests, message)
}

func Internal() *AppError {
	return New(CodeInternal, http.StatusInternalServerError, "internal server error")
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, 500 for anything unclassified.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
