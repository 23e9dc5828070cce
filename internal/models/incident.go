package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status - перечислимый статус экстренного вызова.
// Переходы между статусами намеренно не ограничены (any -> any):
// так ведёт себя исходная система, диспетчер вправе вернуть Resolved
// обратно в Pending. Конкурентные обновления работают по принципу
// last-write-wins, версия записи не проверяется.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusResolved   Status = "resolved"
)

// statusMeta - презентационные метаданные статуса для клиентов.
type statusMeta struct {
	Label string
	Color string
}

var statusTable = map[Status]statusMeta{
	StatusPending:    {Label: "Pending", Color: "#ef4444"},
	StatusDispatched: {Label: "Dispatched", Color: "#f59e0b"},
	StatusResolved:   {Label: "Resolved", Color: "#22c55e"},
}

// ParseStatus валидирует строковое значение статуса.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusTable[st]; !ok {
		return "", fmt.Errorf("unknown incident status %q", s)
	}
	return st, nil
}

// Valid сообщает, входит ли значение в перечисление.
func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// Label возвращает отображаемое имя статуса.
func (s Status) Label() string { return statusTable[s].Label }

// Color возвращает цвет индикатора статуса.
func (s Status) Color() string { return statusTable[s].Color }

func (s Status) String() string { return string(s) }

// Incident - запись об экстренном вызове.
// DispatchID - публичный идентификатор: по нему клиент привязывает
// асинхронную загрузку аудио; неизменяем и уникален на уровне бд.
type Incident struct {
	ID          uuid.UUID `json:"id"`
	DispatchID  string    `json:"dispatch_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Status      Status    `json:"status"`
	AudioURL    *string   `json:"audio_url,omitempty"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewDispatchID генерирует публичный идентификатор вызова.
func NewDispatchID() string {
	return "SOS-" + uuid.NewString()
}
