package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// AppError es el error HTTP estándar de la API pública.
type AppError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa, solo para logs

	// Fields se serializa junto al cuerpo (ej. required_scopes, retryAfter).
	Fields map[string]any `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap crea un AppError con causa.
func Wrap(err error, status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// FromError convierte cualquier error en AppError; lo desconocido es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail retorna una COPIA con detalle; no muta las variables base.
func (e *AppError) WithDetail(detail string) *AppError {
	c := e.clone()
	c.Detail = detail
	return c
}

// WithMessage retorna una COPIA con otro mensaje.
func (e *AppError) WithMessage(msg string) *AppError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithCause retorna una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	c := e.clone()
	c.Err = err
	return c
}

// WithField retorna una COPIA con un campo extra en el cuerpo.
func (e *AppError) WithField(key string, v any) *AppError {
	c := e.clone()
	c.Fields[key] = v
	return c
}

func (e *AppError) clone() *AppError {
	c := *e
	c.Fields = make(map[string]any, len(e.Fields)+1)
	maps.Copy(c.Fields, e.Fields)
	return &c
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

var (
	ErrBadRequest = &AppError{
		Code:       "invalid_request",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "invalid_request",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "invalid_request",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

// Contrato bearer: unauthorized / invalid_request / invalid_token.
var (
	ErrUnauthorized = &AppError{
		Code:       "unauthorized",
		Message:    "Authorization header is required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMalformedAuthorization = &AppError{
		Code:       "invalid_request",
		Message:    `Authorization header must be "Bearer <token>"`,
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "invalid_token",
		Message:    "Invalid or expired access token",
		HTTPStatus: http.StatusUnauthorized,
	}
)

var (
	ErrInsufficientScopes = &AppError{
		Code:       "insufficient_scope",
		Message:    "El token no tiene los scopes necesarios para este recurso.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "not_found",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRouteNotFound = &AppError{
		Code:       "not_found",
		Message:    "La ruta solicitada no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "method_not_allowed",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

var (
	ErrRateLimitExceeded = &AppError{
		Code:       "rate_limit_exceeded",
		Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}
)

var (
	ErrInternalServerError = &AppError{
		Code:       "server_error",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "service_unavailable",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
