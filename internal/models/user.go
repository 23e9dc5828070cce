package models

import (
	"time"

	"github.com/google/uuid"
)

// Role - роль учётной записи.
type Role string

const (
	RoleCivilian  Role = "civilian"
	RoleResponder Role = "responder"
	RoleAdmin     Role = "admin"
)

// Valid сообщает, входит ли роль в перечисление.
func (r Role) Valid() bool {
	switch r {
	case RoleCivilian, RoleResponder, RoleAdmin:
		return true
	}
	return false
}

// CanDispatch - право получать уведомления о вызовах и менять их статус.
func (r Role) CanDispatch() bool {
	return r == RoleResponder || r == RoleAdmin
}

func (r Role) String() string { return string(r) }

// User - учётная запись в справочнике.
// В геопоиск попадают только записи с ролью responder, у которых
// задана последняя известная позиция. Позицию обновляет исключительно
// собственное соединение диспетчера.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`

	// Экстренный контакт, уведомляемый при срабатывании вызова.
	ContactName  *string `json:"contact_name,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
