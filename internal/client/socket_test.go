package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnect_AuthExpired(t *testing.T) {
	// Подготовка: сервер отклоняет хэндшейк до апгрейда
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	socket := NewSocket(SocketConfig{URL: wsURL(srv), Token: "stale-token"}, testLogger())

	// Действие
	err := socket.Connect(context.Background())

	// Проверки
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExpired)
}

func TestSocket_DispatchesEventsToHandlers(t *testing.T) {
	// Подготовка
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		payload, _ := json.Marshal(realtime.LocationPayload{DispatchID: "SOS-test", Latitude: 55.75, Longitude: 37.61})
		msg, _ := json.Marshal(realtime.Envelope{Event: realtime.EventLiveLocation, Data: payload})
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

		// Держим соединение, пока клиент не закроется.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	socket := NewSocket(SocketConfig{URL: wsURL(srv), Token: "test-token"}, testLogger())
	received := make(chan realtime.LocationPayload, 1)
	socket.On(realtime.EventLiveLocation, func(data json.RawMessage) {
		var p realtime.LocationPayload
		if err := json.Unmarshal(data, &p); err == nil {
			received <- p
		}
	})

	// Действие
	require.NoError(t, socket.Connect(context.Background()))
	defer socket.Close()

	// Проверки
	select {
	case p := <-received:
		assert.Equal(t, "SOS-test", p.DispatchID)
		assert.Equal(t, 55.75, p.Latitude)
	case <-time.After(2 * time.Second):
		t.Fatal("live-location event was not delivered")
	}
}

func TestSocket_ReconnectRejoinsIncidentRooms(t *testing.T) {
	// Подготовка: сервер обрывает первое соединение, подписки живут
	// только на соединении и должны быть восстановлены клиентом
	upgrader := websocket.Upgrader{}
	joins := make(chan string, 4)
	var connCount atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		first := connCount.Add(1) == 1

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env realtime.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			if env.Event == realtime.EventJoinIncidentRoom {
				var p realtime.JoinIncidentPayload
				_ = json.Unmarshal(env.Data, &p)
				joins <- p.DispatchID
				if first {
					// Обрыв сразу после первой подписки.
					conn.Close()
					return
				}
			}
		}
	}))
	defer srv.Close()

	socket := NewSocket(SocketConfig{
		URL:           wsURL(srv),
		Token:         "test-token",
		MaxReconnects: 5,
		ReconnectStep: 10 * time.Millisecond,
	}, testLogger())

	// Действие
	require.NoError(t, socket.Connect(context.Background()))
	defer socket.Close()
	require.NoError(t, socket.JoinIncidentRoom("SOS-test"))

	// Проверки: одна и та же комната входит дважды - до и после обрыва
	for i := 0; i < 2; i++ {
		select {
		case dispatchID := <-joins:
			assert.Equal(t, "SOS-test", dispatchID)
		case <-time.After(2 * time.Second):
			t.Fatalf("join %d was not received", i+1)
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	// Подготовка
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	socket := NewSocket(SocketConfig{URL: wsURL(srv), Token: "test-token"}, testLogger())
	require.NoError(t, socket.Connect(context.Background()))

	// Действие / Проверки: повторное закрытие не паникует
	socket.Close()
	socket.Close()
}
