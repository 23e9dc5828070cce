package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/alert"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/sirupsen/logrus"
)

// notifyTimeout ограничивает отложенную фазу оповещения, которая
// живет отдельно от контекста исходного запроса.
const notifyTimeout = 30 * time.Second

// IncidentService определяет контракт бизнес-логики вызовов
type IncidentService interface {
	CreateIncident(ctx context.Context, ownerID uuid.UUID, lat, lon float64) (*models.Incident, error)
	ListAll(ctx context.Context) ([]*models.Incident, error)
	ListMine(ctx context.Context, ownerID uuid.UUID) ([]*models.Incident, error)
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Incident, error)
	AttachAudio(ctx context.Context, dispatchID, ext string, audio io.Reader) (*models.Incident, error)
}

type incidentService struct {
	repo     IncidentRepository
	users    UserRepository
	emitter  RoomEmitter
	notifier Notifier
	alerts   alert.Publisher
	audio    AudioStore
	logger   *logrus.Logger
}

func NewIncidentService(
	repo IncidentRepository,
	users UserRepository,
	emitter RoomEmitter,
	notifier Notifier,
	alerts alert.Publisher,
	audio AudioStore,
	logger *logrus.Logger,
) IncidentService {
	return &incidentService{
		repo:     repo,
		users:    users,
		emitter:  emitter,
		notifier: notifier,
		alerts:   alerts,
		audio:    audio,
		logger:   logger,
	}
}

// CreateIncident сохраняет вызов и возвращает его вызывающему ДО
// какого-либо оповещения: задержка ответа не включает геозапрос и
// рассылку, а сбой рассылки не способен откатить уже сохраненную
// запись. Оповещение уходит в отдельную горутину со своим контекстом.
func (s *incidentService) CreateIncident(ctx context.Context, ownerID uuid.UUID, lat, lon float64) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "CreateIncident",
		"owner":   ownerID,
	})

	if err := validateCoordinates(lat, lon); err != nil {
		log.WithError(err).Warn("Rejected incident with invalid coordinates")
		return nil, err
	}

	incident := &models.Incident{
		DispatchID:  models.NewDispatchID(),
		Latitude:    lat,
		Longitude:   lon,
		Status:      models.StatusPending,
		OwnerUserID: ownerID,
	}

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}

	log.WithField("dispatch_id", incident.DispatchID).Info("Incident created")

	// Отложенная фаза: контекст запроса к этому моменту уже не нужен,
	// его отмена не должна обрывать рассылку.
	go s.afterCreate(incident)

	return incident, nil
}

// afterCreate выполняет всю работу после ответа клиенту: фан-аут по
// диспетчерам, событие в личную комнату владельца (чтобы другие сессии
// его устройства увидели запись) и уведомление экстренного контакта.
func (s *incidentService) afterCreate(incident *models.Incident) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "afterCreate",
		"dispatch_id": incident.DispatchID,
	})

	s.notifier.NotifyCreated(ctx, incident)

	s.emitter.EmitToRoom(realtime.RoomForUser(incident.OwnerUserID.String()), realtime.EventIncidentCreated, incident)

	owner, err := s.users.GetByID(ctx, incident.OwnerUserID)
	if err != nil {
		log.WithError(err).Error("Failed to load owner for emergency contact alert")
		return
	}

	event := alert.NewEvent(incident.DispatchID, owner.Name, incident.Latitude, incident.Longitude)
	if owner.ContactName != nil {
		event.ContactName = *owner.ContactName
	}
	if owner.ContactPhone != nil {
		event.ContactPhone = *owner.ContactPhone
	}
	if err := s.alerts.Publish(ctx, event); err != nil {
		log.WithError(err).Error("Failed to enqueue emergency contact alert")
	}
}

// ListAll возвращает все вызовы, новые первыми
func (s *incidentService) ListAll(ctx context.Context) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListAll",
	})

	incidents, err := s.repo.ListAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}
	return incidents, nil
}

// ListMine возвращает вызовы владельца, новые первыми
func (s *incidentService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListMine",
		"owner":   ownerID,
	})

	incidents, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		log.WithError(err).Error("Failed to list own incidents from repository")
		return nil, fmt.Errorf("service: could not list own incidents: %w", err)
	}
	return incidents, nil
}

// FindNearby возвращает вызовы в радиусе от точки
func (s *incidentService) FindNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "FindNearby",
	})

	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, validationError("radius", "must be positive")
	}

	incidents, err := s.repo.FindNearby(ctx, lat, lon, radiusMeters)
	if err != nil {
		log.WithError(err).Error("Failed to find nearby incidents")
		return nil, fmt.Errorf("service: could not find nearby incidents: %w", err)
	}
	return incidents, nil
}

// UpdateStatus применяет переход статуса и рассылает status-changed в
// общую комнату диспетчеров и в личную комнату владельца. Переходы не
// упорядочены (any -> any), повторная запись того же статуса не
// считается ошибкой и заново эмитит событие. Конкурентные обновления
// разруливаются по принципу last-write-wins без версионного токена -
// известное и осознанное ограничение.
func (s *incidentService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateStatus",
		"incident_id": id,
		"status":      status,
	})

	if !status.Valid() {
		return nil, validationError("status", "is not a known value")
	}

	incident, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		log.WithError(err).Warn("Failed to update incident status")
		return nil, fmt.Errorf("service: could not update status: %w", err)
	}

	if err := s.repo.InvalidateCache(ctx, incident.DispatchID); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}

	s.emitter.EmitToResponders(realtime.EventStatusChanged, incident)
	s.emitter.EmitToRoom(realtime.RoomForUser(incident.OwnerUserID.String()), realtime.EventStatusChanged, incident)

	log.Info("Incident status updated")
	return incident, nil
}

// AttachAudio сохраняет аудиозапись, прикрепляет ссылку к вызову по
// dispatchId и рассылает audio-attached в те же две комнаты, что и
// смена статуса. Неизвестный dispatchId - ошибка только для
// загружающего: блоб не сохраняется, запись не меняется.
func (s *incidentService) AttachAudio(ctx context.Context, dispatchID, ext string, audio io.Reader) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "AttachAudio",
		"dispatch_id": dispatchID,
	})

	// Сначала убеждаемся, что вызов существует: кэш, затем бд.
	incident, err := s.repo.GetFromCache(ctx, dispatchID)
	if err != nil {
		log.WithError(err).Warn("Audio upload cache lookup failed")
	}
	if incident == nil {
		incident, err = s.repo.GetByDispatchID(ctx, dispatchID)
		if err != nil {
			log.WithError(err).Warn("Audio upload for unknown dispatch id")
			return nil, fmt.Errorf("service: audio upload target: %w", err)
		}
		if err := s.repo.SetCache(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to cache incident")
		}
	}

	audioURL, err := s.audio.Save(ctx, dispatchID, ext, audio)
	if err != nil {
		log.WithError(err).Error("Failed to store audio blob")
		return nil, fmt.Errorf("service: could not store audio: %w", err)
	}

	incident, err = s.repo.AttachAudio(ctx, dispatchID, audioURL)
	if err != nil {
		log.WithError(err).Error("Failed to attach audio to incident")
		return nil, fmt.Errorf("service: could not attach audio: %w", err)
	}

	if err := s.repo.InvalidateCache(ctx, dispatchID); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}

	s.emitter.EmitToResponders(realtime.EventAudioAttached, incident)
	s.emitter.EmitToRoom(realtime.RoomForUser(incident.OwnerUserID.String()), realtime.EventAudioAttached, incident)

	log.Info("Audio attached to incident")
	return incident, nil
}

// validateCoordinates проверяет диапазоны широты и долготы.
// Пара (0,0) - допустимый сентинел "позиция неизвестна".
func validateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return validationError("latitude", "must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return validationError("longitude", "must be between -180 and 180")
	}
	return nil
}
