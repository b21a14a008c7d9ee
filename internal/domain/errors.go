package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Application errors
var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyRegistered у пользователя уже есть регистрация на это предложение
	ErrAlreadyRegistered = errors.New("user already has a registration for this offering")

	// ErrOperationInProgress другой запрос уже держит блокировку по этому ресурсу
	ErrOperationInProgress = errors.New("another operation for this resource is in progress")

	// ErrNotOwner ресурс принадлежит другому пользователю
	ErrNotOwner = errors.New("resource belongs to another user")

	// ErrAlreadyCompleted регистрация уже завершена
	ErrAlreadyCompleted = errors.New("registration is already completed")

	// ErrAlreadyCancelled платеж уже отменен
	ErrAlreadyCancelled = errors.New("payment is already cancelled")

	// ErrRegistrationCancelled регистрация была отменена
	ErrRegistrationCancelled = errors.New("registration has been cancelled")

	// ErrLockUnavailable хранилище блокировок недоступно, операция не выполняется
	ErrLockUnavailable = errors.New("lock service unavailable")
)

// Коды ошибок валидации, отдаваемые клиентам API
const (
	CodeOutsideWindow  = "outside_window"
	CodePriceMismatch  = "price_mismatch"
	CodeAmountBounds   = "amount_out_of_bounds"
	CodeInvalidMethod  = "invalid_payment_method"
	CodeInvalidRequest = "invalid_request"
)

// ValidationError отклоняет запрос до изменения какого-либо состояния
type ValidationError struct {
	Code    string
	Message string
}

// Error реализует интерфейс error
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError создает ошибку валидации со стабильным кодом
func NewValidationError(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PriceMismatchError сумма в запросе не совпадает с ценой предложения
type PriceMismatchError struct {
	Expected  decimal.Decimal
	Submitted decimal.Decimal
}

// Error реализует интерфейс error
func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("submitted amount %s does not match offering price %s", e.Submitted, e.Expected)
}

// NotFoundError идентифицирует отсутствующий ресурс
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is сопоставляет ошибку с ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает ошибку отсутствия ресурса
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}
