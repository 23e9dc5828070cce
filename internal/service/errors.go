package service

import (
	"errors"
	"fmt"
)

// Сентинельные ошибки бизнес-слоя. Хэндлеры сопоставляют их с HTTP
// статусами через errors.Is; всё остальное считается внутренней
// ошибкой и наружу не детализируется.
var (
	// ErrNotFound - инцидент с таким id или dispatchId не существует.
	ErrNotFound = errors.New("incident not found")

	// ErrValidation - входные данные отклонены до какой-либо записи.
	ErrValidation = errors.New("validation failed")

	// ErrEmailTaken - учётная запись с таким email уже существует.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials - неверная пара email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// validationError формирует ErrValidation с пояснением по полю.
func validationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}
