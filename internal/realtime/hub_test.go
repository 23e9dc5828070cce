package realtime

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewHub(logger)
}

func newTestConn(hub *Hub) *Conn {
	return &Conn{
		hub:  hub,
		send: make(chan []byte, sendBuffer),
	}
}

func TestEmitToRoom_DeliversToAllMembers(t *testing.T) {
	// Подготовка
	hub := newTestHub()
	first := newTestConn(hub)
	second := newTestConn(hub)
	hub.join("sos-SOS-test", first)
	hub.join("sos-SOS-test", second)

	// Действие
	hub.EmitToRoom("sos-SOS-test", EventLiveLocation, LocationPayload{
		DispatchID: "SOS-test",
		Latitude:   55.75,
		Longitude:  37.61,
	})

	// Проверки: оба получили один и тот же конверт
	for _, conn := range []*Conn{first, second} {
		select {
		case raw := <-conn.send:
			var env Envelope
			require.NoError(t, json.Unmarshal(raw, &env))
			assert.Equal(t, EventLiveLocation, env.Event)

			var p LocationPayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			assert.Equal(t, "SOS-test", p.DispatchID)
		default:
			t.Fatal("member did not receive the event")
		}
	}
}

func TestEmitToRoom_OtherRoomsUntouched(t *testing.T) {
	// Подготовка
	hub := newTestHub()
	member := newTestConn(hub)
	outsider := newTestConn(hub)
	hub.join(RoomResponders, member)
	hub.join("user-42", outsider)

	// Действие
	hub.EmitToResponders(EventIncidentCreated, map[string]string{"dispatch_id": "SOS-test"})

	// Проверки
	assert.Len(t, member.send, 1)
	assert.Len(t, outsider.send, 0)
}

func TestLeaveAll_RemovesFromEveryRoom(t *testing.T) {
	// Подготовка
	hub := newTestHub()
	conn := newTestConn(hub)
	hub.join(RoomResponders, conn)
	hub.join("user-42", conn)
	hub.join("sos-SOS-test", conn)

	// Действие
	hub.leaveAll(conn)

	// Проверки: пустые комнаты убраны из реестра
	assert.Equal(t, 0, hub.RoomSize(RoomResponders))
	assert.Equal(t, 0, hub.RoomSize("user-42"))
	assert.Equal(t, 0, hub.RoomSize("sos-SOS-test"))
}

func TestEnqueue_OverflowDisconnects(t *testing.T) {
	// Подготовка: медленный клиент с забитым буфером
	hub := newTestHub()
	conn := newTestConn(hub)
	hub.join(RoomResponders, conn)

	for i := 0; i < sendBuffer; i++ {
		conn.enqueue([]byte("{}"))
	}

	// Действие: следующее сообщение не помещается
	conn.enqueue([]byte("{}"))

	// Проверки: соединение выведено из комнат, повтора доставки нет
	assert.Equal(t, 0, hub.RoomSize(RoomResponders))
}

func TestEnqueue_AfterCloseIsNoop(t *testing.T) {
	// Подготовка: буфер забит, переполнение закрывает соединение
	hub := newTestHub()
	conn := newTestConn(hub)
	hub.join(RoomResponders, conn)

	for i := 0; i < sendBuffer; i++ {
		conn.enqueue([]byte("{}"))
	}
	conn.enqueue([]byte("{}"))
	require.Equal(t, 0, hub.RoomSize(RoomResponders))

	// Действие: доставка рассыльщика, снявшего снимок комнаты до
	// закрытия - не должна паниковать на закрытом канале
	conn.enqueue([]byte("{}"))
	conn.close()

	// Проверки: сообщение молча отброшено
	assert.Len(t, conn.send, sendBuffer)
}

func TestEmitToRoom_ConcurrentWithDisconnect(t *testing.T) {
	// Подготовка: рассылка наперегонки с отключением медленного клиента
	hub := newTestHub()
	conn := newTestConn(hub)
	hub.join(RoomResponders, conn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBuffer*4; i++ {
			hub.EmitToResponders(EventIncidentCreated, map[string]string{"dispatch_id": "SOS-test"})
		}
	}()
	conn.close()
	<-done

	// Проверки: соединение выведено, паники не было
	assert.Equal(t, 0, hub.RoomSize(RoomResponders))
}

func TestRoomNames(t *testing.T) {
	// Проверки
	assert.Equal(t, "user-42", RoomForUser("42"))
	assert.Equal(t, "sos-SOS-test", RoomForIncident("SOS-test"))
	assert.Equal(t, "responders", RoomResponders)
}
