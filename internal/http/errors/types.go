package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError es el error estándar que cruza la capa HTTP.
// Code y Message se exponen al cliente; Err queda para logs.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is compara por Code, así errors.Is(err, ErrInvalidAPIKey) funciona sobre copias.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// FromError convierte cualquier error en AppError. Lo desconocido es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail devuelve una copia con Detail; nunca muta los errores base.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause devuelve una copia con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// ---- 400 ----

var (
	ErrBadRequest       = New(http.StatusBadRequest, "BAD_REQUEST", "The request is malformed or missing parameters.")
	ErrInvalidJSON      = New(http.StatusBadRequest, "INVALID_JSON", "The request body is not valid JSON.")
	ErrMissingFields    = New(http.StatusBadRequest, "MISSING_FIELDS", "Required fields are missing.")
	ErrInvalidFormat    = New(http.StatusBadRequest, "INVALID_FORMAT", "One or more fields have an invalid format.")
	ErrInvalidParameter = New(http.StatusBadRequest, "INVALID_PARAMETER", "A path or query parameter is invalid.")
	ErrBodyTooLarge     = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "The request body exceeds the maximum size.")
)

// ---- 401 ----
// Todas las fallas de validación de key salen como ErrInvalidAPIKey.
// La sub-causa (expirada, revocada) solo va a logs y métricas.

var (
	ErrAPIKeyRequired = New(http.StatusUnauthorized, "API_KEY_REQUIRED", "API key required")
	ErrInvalidAPIKey  = New(http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
)

// ---- 404 / 405 / 429 ----

var (
	ErrNotFound          = New(http.StatusNotFound, "NOT_FOUND", "The requested resource was not found.")
	ErrAPIKeyNotFound    = New(http.StatusNotFound, "API_KEY_NOT_FOUND", "API key not found")
	ErrMethodNotAllowed  = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The HTTP method is not allowed for this resource.")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Try again later.")
)

// ---- 5xx ----

var (
	ErrInternalServerError = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal error occurred.")
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "The service is temporarily unavailable.")
)
