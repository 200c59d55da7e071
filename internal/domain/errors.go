package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling (OCP compliance).
type HTTPError interface {
	error
	StatusCode() int
}

// Stable taxonomy codes carried on terminal SSE events and error responses.
const (
	CodeTenantNotFound     = "TENANT_NOT_FOUND"
	CodeTenantInvalid      = "TENANT_INVALID"
	CodeInsufficientCredit = "INSUFFICIENT_CREDITS"
	CodeInteractionLimit   = "INTERACTION_LIMIT_REACHED"
	CodeUpstreamUnavail    = "UPSTREAM_UNAVAILABLE"
	CodeBadRequestUpstream = "BAD_REQUEST_UPSTREAM"
	CodeToolFailed         = "TOOL_EXECUTION_FAILED"
	CodePersistenceFailed  = "PERSISTENCE_FAILED"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeDeadlineExceeded   = "DEADLINE_EXCEEDED"
	CodeCancelled          = "CANCELLED"
	CodeInternal           = "INTERNAL_ERROR"
)

// GatewayError is a coded error from the turn pipeline. Code is stable and
// machine-readable; Message is human-readable in the configured locale.
type GatewayError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// StatusCode implements the HTTPError interface.
func (e *GatewayError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *GatewayError) Unwrap() error { return e.Err }

// Constructors for the taxonomy. Messages for credit and limit conditions are
// user-visible and localized (es-CL); upstream failures stay generic.

func ErrTenantNotFound(id string) *GatewayError {
	return &GatewayError{Code: CodeTenantNotFound, Message: "instancia no encontrada: " + id, Status: http.StatusNotFound}
}

func ErrTenantInvalid(id string, err error) *GatewayError {
	return &GatewayError{Code: CodeTenantInvalid, Message: "instancia inválida: " + id, Status: http.StatusInternalServerError, Err: err}
}

func ErrInsufficientCredits() *GatewayError {
	return &GatewayError{
		Code:    CodeInsufficientCredit,
		Message: "No tienes créditos suficientes para realizar esta consulta. Contacta al administrador para recargar tu cuenta.",
		Status:  http.StatusPaymentRequired,
	}
}

func ErrInteractionLimit() *GatewayError {
	return &GatewayError{
		Code:    CodeInteractionLimit,
		Message: "Has alcanzado el límite máximo de interacciones para esta conversación.",
		Status:  http.StatusTooManyRequests,
	}
}

func ErrUpstreamUnavailable(err error) *GatewayError {
	return &GatewayError{Code: CodeUpstreamUnavail, Message: "el modelo no está disponible, intenta nuevamente", Status: http.StatusBadGateway, Err: err}
}

func ErrBadRequestUpstream(err error) *GatewayError {
	return &GatewayError{Code: CodeBadRequestUpstream, Message: "el proveedor rechazó la solicitud", Status: http.StatusBadGateway, Err: err}
}

func ErrPersistenceFailed(err error) *GatewayError {
	return &GatewayError{
		Code:    CodePersistenceFailed,
		Message: "La respuesta fue generada pero no pudo guardarse. Intenta nuevamente.",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ErrConfiguration(detail string, err error) *GatewayError {
	return &GatewayError{Code: CodeConfiguration, Message: "error de configuración: " + detail, Status: http.StatusInternalServerError, Err: err}
}

func ErrDeadlineExceeded() *GatewayError {
	return &GatewayError{Code: CodeDeadlineExceeded, Message: "la solicitud excedió el tiempo máximo", Status: http.StatusGatewayTimeout}
}

func ErrCancelled() *GatewayError {
	return &GatewayError{Code: CodeCancelled, Message: "solicitud cancelada", Status: 499}
}

func ErrInternal(err error) *GatewayError {
	return &GatewayError{Code: CodeInternal, Message: "error interno", Status: http.StatusInternalServerError, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain, defaulting to
// INTERNAL_ERROR for unknown errors.
func CodeOf(err error) string {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeInternal
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInsufficientBalance = errors.New("insufficient credit balance")
)

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
