package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInconsistency ErrorCode = "INCONSISTENCY"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// AppError типизированная ошибка бизнес-логики с кодом и HTTP статусом.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeInvalidState, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsInvalidState(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeInvalidState
}

func IsInconsistency(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeInconsistency
}

// Сообщения различают "уже выпущено", "не в эскроу" и "не покупатель":
// клиент показывает по ним разные сценарии восстановления.
var (
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrProductNotFound     = New(ErrCodeNotFound, "товар не найден")
	ErrTransactionNotFound = New(ErrCodeNotFound, "транзакция не найдена")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrProductUnavailable  = New(ErrCodeInvalidState, "товар недоступен для покупки")
	ErrOwnProduct          = New(ErrCodeForbidden, "нельзя купить собственный товар")
	ErrNotBuyer            = New(ErrCodeForbidden, "подтвердить доставку может только покупатель")
	ErrNotInEscrow         = New(ErrCodeInvalidState, "транзакция не находится в эскроу")
	ErrAlreadyReleased     = New(ErrCodeInvalidState, "эскроу уже выпущено")
	ErrNotParticipant      = New(ErrCodeForbidden, "отменить транзакцию может только её участник")
)
