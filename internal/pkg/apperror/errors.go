package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeAmountMismatch    ErrorCode = "AMOUNT_MISMATCH"
	ErrCodePostReleaseRefund ErrorCode = "POST_RELEASE_REFUND"

	// ErrCodePaymentNotConfirmed — шлюз ещё не подтвердил платёж при
	// сверке после редиректа.
	ErrCodePaymentNotConfirmed ErrorCode = "PAYMENT_NOT_CONFIRMED"
)

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
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidTransition:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeAmountMismatch, ErrCodeInvalidState, ErrCodePostReleaseRefund:
		return http.StatusConflict
	case ErrCodePaymentNotConfirmed:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

// Is проверяет, содержит ли цепочка ошибок AppError с указанным кодом.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool  { return Is(err, ErrCodeNotFound) }
func IsForbidden(err error) bool { return Is(err, ErrCodeForbidden) }
func IsConflict(err error) bool  { return Is(err, ErrCodeConflict) }

var (
	ErrOrderNotFound       = New(ErrCodeNotFound, "заказ не найден")
	ErrBookingNotFound     = New(ErrCodeNotFound, "бронирование не найдено")
	ErrTransactionNotFound = New(ErrCodeNotFound, "транзакция не найдена")
	ErrReturnNotFound      = New(ErrCodeNotFound, "запрос на возврат не найден")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrQuoteNotFound       = New(ErrCodeNotFound, "коммерческое предложение не найдено")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials  = New(ErrCodeUnauthorized, "неверные учетные данные")
)
