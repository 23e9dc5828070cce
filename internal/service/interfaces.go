package service

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/models"
)

// IncidentRepository определяет контракт для работы с бд вызовов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	GetByDispatchID(ctx context.Context, dispatchID string) (*models.Incident, error)
	ListAll(ctx context.Context) ([]*models.Incident, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Incident, error)
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Incident, error)
	AttachAudio(ctx context.Context, dispatchID, audioURL string) (*models.Incident, error)
	GetFromCache(ctx context.Context, dispatchID string) (*models.Incident, error)
	SetCache(ctx context.Context, incident *models.Incident) error
	InvalidateCache(ctx context.Context, dispatchID string) error
}

// UserRepository определяет контракт для справочника учётных записей
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lon float64) error
	FindRespondersNear(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.User, error)
}

// RoomEmitter - выход в push-канал. Реализуется realtime.Hub.
type RoomEmitter interface {
	EmitToRoom(room, event string, data any)
	EmitToResponders(event string, data any)
}

// Notifier - отложенная фаза оповещения о созданном вызове.
// Вызывается уже после ответа клиенту; любые ошибки внутри только
// логируются и никогда не отменяют созданную запись.
type Notifier interface {
	NotifyCreated(ctx context.Context, incident *models.Incident)
}

// AudioStore - внешнее хранилище аудиозаписей.
type AudioStore interface {
	Save(ctx context.Context, dispatchID, ext string, r io.Reader) (string, error)
}
