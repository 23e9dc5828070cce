package service

import (
	"context"

	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/sirupsen/logrus"
)

// GeoDispatchNotifier адресует событие о новом вызове ближайшим
// диспетчерам. Вызов не имеет права остаться без оповещения: пустая
// выборка и сбой геозапроса одинаково приводят к широковещательной
// рассылке в общую комнату диспетчеров.
type GeoDispatchNotifier struct {
	users        UserRepository
	emitter      RoomEmitter
	logger       *logrus.Logger
	radiusMeters int
}

func NewGeoDispatchNotifier(users UserRepository, emitter RoomEmitter, logger *logrus.Logger, radiusMeters int) *GeoDispatchNotifier {
	return &GeoDispatchNotifier{
		users:        users,
		emitter:      emitter,
		logger:       logger,
		radiusMeters: radiusMeters,
	}
}

// NotifyCreated рассылает incident-created. Найденные диспетчеры
// получают событие в личные комнаты, ближние первыми; иначе - общий
// бродкаст. Ошибки только логируются: создание уже подтверждено.
func (n *GeoDispatchNotifier) NotifyCreated(ctx context.Context, incident *models.Incident) {
	log := n.logger.WithFields(logrus.Fields{
		"service":     "dispatch",
		"method":      "NotifyCreated",
		"dispatch_id": incident.DispatchID,
	})

	responders, err := n.users.FindRespondersNear(ctx, incident.Latitude, incident.Longitude, n.radiusMeters)
	if err != nil {
		log.WithError(err).Error("Geo query failed, broadcasting to all responders")
		n.emitter.EmitToResponders(realtime.EventIncidentCreated, incident)
		return
	}

	if len(responders) == 0 {
		log.Info("No responders within radius, broadcasting to all")
		n.emitter.EmitToResponders(realtime.EventIncidentCreated, incident)
		return
	}

	log.WithField("count", len(responders)).Info("Notifying nearest responders")
	for _, responder := range responders {
		n.emitter.EmitToRoom(realtime.RoomForUser(responder.ID.String()), realtime.EventIncidentCreated, incident)
	}
}
