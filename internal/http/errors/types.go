package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellomail/internal/crm"
	"github.com/dropDatabas3/hellomail/internal/dispatch"
	"github.com/dropDatabas3/hellomail/internal/domain/repository"
	jwtx "github.com/dropDatabas3/hellomail/internal/jwt"
	"github.com/dropDatabas3/hellomail/internal/oauth/google"
)

// AppError es el error estándar de la capa HTTP.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa, sólo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithDetail devuelve una COPIA con detalle (no muta los predefinidos).
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// FromError traduce errores de las capas internas a AppError.
//
//	crm.ErrValidation                → 400
//	crm.ErrInvalidCredentials / jwt  → 401
//	repository.ErrForbidden          → 403
//	repository.ErrNotFound           → 404
//	repository.ErrConflict (y claim) → 409
//	precondiciones del pipeline      → 422
//	dispatch interrumpido / timeout  → 503
//	resto                            → 500
func FromError(err error) *AppError {
	if err == nil {
		return ErrInternalServerError
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, crm.ErrValidation):
		return ErrValidation.WithDetail(validationDetail(err)).WithCause(err)
	case stderrors.Is(err, crm.ErrInvalidCredentials):
		return ErrInvalidCredentials.WithCause(err)
	case stderrors.Is(err, jwtx.ErrInvalidToken),
		stderrors.Is(err, jwtx.ErrInvalidIssuer),
		stderrors.Is(err, jwtx.ErrClaimsShape):
		return ErrTokenInvalid.WithCause(err)
	case stderrors.Is(err, crm.ErrInvalidState):
		return ErrInvalidState.WithCause(err)
	case stderrors.Is(err, repository.ErrForbidden):
		return ErrForbidden.WithCause(err)
	case stderrors.Is(err, repository.ErrNotFound):
		return ErrNotFound.WithCause(err)
	case stderrors.Is(err, crm.ErrUsernameTaken):
		return ErrUsernameTaken.WithCause(err)
	case stderrors.Is(err, crm.ErrListNotEmpty):
		return ErrListNotEmpty.WithCause(err)
	case stderrors.Is(err, dispatch.ErrAlreadyClaimed):
		return ErrAlreadyClaimed.WithCause(err)
	case stderrors.Is(err, crm.ErrEmailLocked), stderrors.Is(err, repository.ErrConflict):
		return ErrConflict.WithCause(err)
	case stderrors.Is(err, dispatch.ErrAccountNotLinked):
		return ErrAccountNotLinked.WithCause(err)
	case stderrors.Is(err, dispatch.ErrNoRecipients):
		return ErrNoRecipients.WithCause(err)
	case stderrors.Is(err, google.ErrRefreshFailed):
		return ErrGmailRelinkRequired.WithCause(err)
	case stderrors.Is(err, google.ErrMissingCredential),
		stderrors.Is(err, google.ErrProfileLookupFailed):
		return ErrGmailLinkFailed.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, dispatch.ErrInterrupted),
		stderrors.Is(err, context.DeadlineExceeded):
		return ErrServiceUnavailable.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// validationDetail quita el prefijo del sentinel: "validation failed: x" → "x".
func validationDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, crm.ErrValidation.Error()+": "); i >= 0 {
		prefix := strings.TrimSuffix(msg[:i], ": ")
		rest := msg[i+len(crm.ErrValidation.Error())+2:]
		if prefix != "" {
			return prefix + ": " + rest
		}
		return rest
	}
	return msg
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// 400 Bad Request
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnsupportedMediaType = &AppError{
		Code:       "UNSUPPORTED_MEDIA_TYPE",
		Message:    "Content-Type debe ser application/json.",
		HTTPStatus: http.StatusUnsupportedMediaType,
	}

	ErrValidation = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Uno o más campos son inválidos.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidState = &AppError{
		Code:       "INVALID_STATE",
		Message:    "El state de OAuth es inválido o expiró.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenInvalid = &AppError{
		Code:       "TOKEN_INVALID",
		Message:    "El token de sesión es inválido o expiró.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenMissing = &AppError{
		Code:       "TOKEN_MISSING",
		Message:    "No se proporcionó token de sesión.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 403 / 404 / 405
// ---------------------------------------------------------------------------------

var (
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tiene permisos para realizar esta acción.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRouteNotFound = &AppError{
		Code:       "ROUTE_NOT_FOUND",
		Message:    "La ruta solicitada no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}
)

// ---------------------------------------------------------------------------------
// 409 Conflict
// ---------------------------------------------------------------------------------

var (
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "La solicitud entra en conflicto con el estado actual del recurso.",
		HTTPStatus: http.StatusConflict,
	}

	ErrUsernameTaken = &AppError{
		Code:       "USERNAME_TAKEN",
		Message:    "El nombre de usuario ya está en uso.",
		HTTPStatus: http.StatusConflict,
	}

	ErrListNotEmpty = &AppError{
		Code:       "LIST_NOT_EMPTY",
		Message:    "La lista todavía tiene destinatarios.",
		HTTPStatus: http.StatusConflict,
	}

	ErrAlreadyClaimed = &AppError{
		Code:       "EMAIL_NOT_SENDABLE",
		Message:    "El email ya fue enviado o se está enviando.",
		HTTPStatus: http.StatusConflict,
	}
)

// ---------------------------------------------------------------------------------
// 422 Unprocessable Entity - precondiciones del envío
// ---------------------------------------------------------------------------------

var (
	ErrAccountNotLinked = &AppError{
		Code:       "ACCOUNT_NOT_LINKED",
		Message:    "La cuenta no tiene Gmail vinculado.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrNoRecipients = &AppError{
		Code:       "NO_RECIPIENTS",
		Message:    "El email no tiene destinatarios.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrGmailLinkFailed = &AppError{
		Code:       "GMAIL_LINK_FAILED",
		Message:    "No se pudo vincular la cuenta de Gmail.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}

	ErrGmailRelinkRequired = &AppError{
		Code:       "GMAIL_RELINK_REQUIRED",
		Message:    "Google rechazó la credencial de Gmail. Volvé a vincular la cuenta.",
		HTTPStatus: http.StatusUnprocessableEntity,
	}
)

// ---------------------------------------------------------------------------------
// 429 Too Many Requests
// ---------------------------------------------------------------------------------

var ErrTooManyRequests = &AppError{
	Code:       "TOO_MANY_REQUESTS",
	Message:    "Demasiados intentos. Probá de nuevo más tarde.",
	HTTPStatus: http.StatusTooManyRequests,
}

// ---------------------------------------------------------------------------------
// 5xx
// ---------------------------------------------------------------------------------

var (
	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
