// Package errs — доменные ошибки тикет-системы. Обработчики интеракций
// переводят их в приватные (ephemeral) ответы пользователю.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrTicketNotFound — канал не привязан к тикету (устаревшая кнопка,
	// канал создан вручную).
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrPermission — у актора нет требуемой роли для перехода.
	ErrPermission = errors.New("permission denied")

	// ErrTicketClosed и ErrTicketNotClosed — переход невозможен в текущем статусе.
	ErrTicketClosed    = errors.New("ticket already closed")
	ErrTicketNotClosed = errors.New("ticket is not closed")

	// ErrConfirmExpired — подтверждение истекло или уже использовано.
	ErrConfirmExpired = errors.New("confirmation expired")
)

// ValidationError — некорректное поле формы. Состояние не меняется.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation создаёт ValidationError для поля.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation сообщает, является ли err ошибкой валидации.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProvisioningError — платформа не смогла создать/настроить канал.
// Строка тикета при этом не сохраняется.
type ProvisioningError struct {
	Op  string
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Provisioning оборачивает ошибку платформы.
func Provisioning(op string, err error) error {
	return &ProvisioningError{Op: op, Err: err}
}

// IsProvisioning сообщает, является ли err ошибкой провижининга.
func IsProvisioning(err error) bool {
	var pe *ProvisioningError
	return errors.As(err, &pe)
}

// StorageError — БД недоступна или запись не прошла. Не глотается молча:
// логируется и отдаётся пользователю как общая ошибка.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage оборачивает ошибку слоя хранения.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
