// Package apperr описывает таксономию ошибок ядра доставки.
// Ошибки оборачиваются через fmt.Errorf("%w: ...") и проверяются errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation - некорректные или неполные входные данные. Не повторяется автоматически.
	ErrValidation = errors.New("validation error")
	// ErrConflict - заявку уже забрал другой водитель или она изменилась параллельно.
	ErrConflict = errors.New("conflict")
	// ErrForbidden - действие над чужой заявкой или без нужной роли.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition - недопустимый переход статуса.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotFound - запись не существует или принадлежит другому арендатору.
	ErrNotFound = errors.New("not found")
	// ErrTransient - сбой хранилища; операцию можно безопасно повторить целиком.
	ErrTransient = errors.New("transient store error")
	// ErrUnavailable - база недоступна (соединение). Всегда вместе с ErrTransient.
	ErrUnavailable = errors.New("store unavailable")
)

// Validation возвращает ошибку валидации с пояснением.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflict возвращает ошибку конфликта с пояснением.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Forbidden возвращает ошибку доступа с пояснением.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// InvalidTransition возвращает ошибку недопустимого перехода.
func InvalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// NotFound возвращает ошибку отсутствия записи.
func NotFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}

// Transient оборачивает сбой хранилища; причина доступна через errors.Is/As.
func Transient(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransient, op, err)
}

// Unavailable оборачивает сбой соединения с базой: повторяемо и открывает выключатель.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %w: %s: %w", ErrTransient, ErrUnavailable, op, err)
}

// IsRetryable сообщает, можно ли повторить операцию целиком.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
