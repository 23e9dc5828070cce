package service_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/shenikar/sos_dispatch_system/internal/service"
	"github.com/shenikar/sos_dispatch_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"go.uber.org/mock/gomock"
)

func newTestNotifier(t *testing.T) (*service.GeoDispatchNotifier, *mocks.MockUserRepository, *mocks.MockRoomEmitter) {
	ctrl := gomock.NewController(t)
	usersMock := mocks.NewMockUserRepository(ctrl)
	emitterMock := mocks.NewMockRoomEmitter(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	notifier := service.NewGeoDispatchNotifier(usersMock, emitterMock, logger, 5000)
	return notifier, usersMock, emitterMock
}

func TestNotifyCreated_NearestResponders(t *testing.T) {
	// Подготовка
	notifier, usersMock, emitterMock := newTestNotifier(t)
	ctx := context.Background()
	incident := &models.Incident{DispatchID: "SOS-test", Latitude: 55.75, Longitude: 37.61}
	first := &models.User{ID: uuid.New(), Role: models.RoleResponder}
	second := &models.User{ID: uuid.New(), Role: models.RoleResponder}

	// Ожидания: каждый найденный диспетчер получает событие в личную
	// комнату, общего бродкаста нет
	usersMock.EXPECT().
		FindRespondersNear(ctx, 55.75, 37.61, 5000).
		Return([]*models.User{first, second}, nil).
		Times(1)
	emitterMock.EXPECT().
		EmitToRoom(realtime.RoomForUser(first.ID.String()), realtime.EventIncidentCreated, incident).
		Times(1)
	emitterMock.EXPECT().
		EmitToRoom(realtime.RoomForUser(second.ID.String()), realtime.EventIncidentCreated, incident).
		Times(1)

	// Действие
	notifier.NotifyCreated(ctx, incident)
}

func TestNotifyCreated_EmptyResultBroadcasts(t *testing.T) {
	// Подготовка: в радиусе никого - вызов не имеет права остаться
	// без оповещения
	notifier, usersMock, emitterMock := newTestNotifier(t)
	ctx := context.Background()
	incident := &models.Incident{DispatchID: "SOS-test", Latitude: 55.75, Longitude: 37.61}

	// Ожидания
	usersMock.EXPECT().
		FindRespondersNear(ctx, 55.75, 37.61, 5000).
		Return([]*models.User{}, nil).
		Times(1)
	emitterMock.EXPECT().
		EmitToResponders(realtime.EventIncidentCreated, incident).
		Times(1)

	// Действие
	notifier.NotifyCreated(ctx, incident)
}

func TestNotifyCreated_GeoErrorBroadcasts(t *testing.T) {
	// Подготовка: сбой геозапроса эквивалентен пустой выборке
	notifier, usersMock, emitterMock := newTestNotifier(t)
	ctx := context.Background()
	incident := &models.Incident{DispatchID: "SOS-test", Latitude: 55.75, Longitude: 37.61}

	// Ожидания
	usersMock.EXPECT().
		FindRespondersNear(ctx, 55.75, 37.61, 5000).
		Return(nil, fmt.Errorf("postgis is down")).
		Times(1)
	emitterMock.EXPECT().
		EmitToResponders(realtime.EventIncidentCreated, incident).
		Times(1)

	// Действие
	notifier.NotifyCreated(ctx, incident)
}
