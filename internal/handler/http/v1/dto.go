package v1

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest DTO для регистрации учётной записи
// @Description DTO для регистрации учётной записи
type RegisterRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=255"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=6"`
	Role         string  `json:"role,omitempty" validate:"omitempty,oneof=civilian responder admin"`
	ContactName  *string `json:"contact_name,omitempty"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

// LoginRequest DTO для входа
// @Description DTO для входа
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateSOSRequest DTO для создания вызова.
// Пара (0,0) допустима как сентинел "позиция неизвестна".
// @Description DTO для создания экстренного вызова
type CreateSOSRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// UpdateStatusRequest DTO для смены статуса вызова
// @Description DTO для смены статуса вызова
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending dispatched resolved"`
}

// UserResponse DTO с публичными полями учётной записи
// @Description DTO с публичными полями учётной записи
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// AuthResponse DTO для ответа register/login
// @Description DTO для ответа register/login
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// CreateSOSResponse DTO подтверждения создания вызова.
// Отдается до начала рассылки оповещений.
// @Description DTO подтверждения создания вызова
type CreateSOSResponse struct {
	DispatchID string `json:"dispatch_id"`
	Status     string `json:"status"`
}

// IncidentResponse DTO для ответа с информацией о вызове
// @Description DTO для ответа с информацией о вызове
type IncidentResponse struct {
	ID          uuid.UUID `json:"id"`
	DispatchID  string    `json:"dispatch_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	StatusColor string    `json:"status_color"`
	AudioURL    *string   `json:"audio_url,omitempty"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UploadAudioResponse DTO с сохраненной ссылкой на аудио
// @Description DTO с сохраненной ссылкой на аудио
type UploadAudioResponse struct {
	AudioURL string `json:"audio_url"`
}
