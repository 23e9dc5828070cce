package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shenikar/sos_dispatch_system/internal/realtime"
	"github.com/sirupsen/logrus"
)

// SocketConfig - настройки переподключения канала.
type SocketConfig struct {
	URL           string // ws://host/ws
	Token         string
	MaxReconnects int           // предел попыток подряд
	ReconnectStep time.Duration // линейный шаг: попытка N ждет N*step
}

// EventHandler получает полезную нагрузку события канала.
type EventHandler func(data json.RawMessage)

// Socket - клиентское соединение push-канала. При разрыве
// переподключается с линейной задержкой и ограниченным числом попыток
// и заново входит во все комнаты вызовов, на которые было подписано:
// сервер журнала сообщений не держит, подписки живут только на
// соединении.
type Socket struct {
	cfg    SocketConfig
	logger *logrus.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	handlers      map[string]EventHandler
	incidentRooms map[string]struct{}
	closed        bool

	done chan struct{}
}

func NewSocket(cfg SocketConfig, logger *logrus.Logger) *Socket {
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = 10
	}
	if cfg.ReconnectStep == 0 {
		cfg.ReconnectStep = time.Second
	}
	return &Socket{
		cfg:           cfg,
		logger:        logger,
		handlers:      make(map[string]EventHandler),
		incidentRooms: make(map[string]struct{}),
		done:          make(chan struct{}),
	}
}

// On регистрирует обработчик события сервера.
// Вызывается до Connect.
func (s *Socket) On(event string, handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

// Connect устанавливает соединение и запускает цикл чтения.
func (s *Socket) Connect(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(ctx)
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+s.cfg.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, headers)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrAuthExpired
		}
		return nil, fmt.Errorf("failed to connect socket: %w", err)
	}
	return conn, nil
}

// JoinIncidentRoom подписывается на живую геолокацию вызова.
// Подписка запоминается и восстанавливается после переподключения.
func (s *Socket) JoinIncidentRoom(dispatchID string) error {
	s.mu.Lock()
	s.incidentRooms[dispatchID] = struct{}{}
	s.mu.Unlock()

	return s.send(realtime.EventJoinIncidentRoom, realtime.JoinIncidentPayload{DispatchID: dispatchID})
}

// SendLocation отправляет позицию: с dispatchId - живая позиция
// пострадавшего устройства, без - собственная позиция диспетчера.
func (s *Socket) SendLocation(dispatchID string, lat, lon float64) error {
	return s.send(realtime.EventLocationUpdate, realtime.LocationPayload{
		DispatchID: dispatchID,
		Latitude:   lat,
		Longitude:  lon,
	})
}

func (s *Socket) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	msg, err := json.Marshal(realtime.Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("socket is not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// readLoop читает события и раздает их обработчикам; при разрыве
// запускает переподключение.
func (s *Socket) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		closed := s.closed
		s.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			s.logger.WithError(err).Warn("Socket read failed, reconnecting")
			if !s.reconnect(ctx) {
				return
			}
			continue
		}

		var env realtime.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.WithError(err).Warn("Failed to decode server event")
			continue
		}

		s.mu.Lock()
		handler := s.handlers[env.Event]
		s.mu.Unlock()
		if handler != nil {
			handler(env.Data)
		}
	}
}

// reconnect пытается восстановить соединение: попытка N ждет N*step,
// после MaxReconnects неудач соединение признается потерянным.
func (s *Socket) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		case <-time.After(time.Duration(attempt) * s.cfg.ReconnectStep):
		}

		conn, err := s.dial(ctx)
		if err != nil {
			s.logger.WithError(err).Warnf("Reconnect attempt %d/%d failed", attempt, s.cfg.MaxReconnects)
			continue
		}

		s.mu.Lock()
		s.conn = conn
		rooms := make([]string, 0, len(s.incidentRooms))
		for room := range s.incidentRooms {
			rooms = append(rooms, room)
		}
		s.mu.Unlock()

		// Комнаты вызовов живут только на соединении - входим заново.
		for _, dispatchID := range rooms {
			if err := s.send(realtime.EventJoinIncidentRoom, realtime.JoinIncidentPayload{DispatchID: dispatchID}); err != nil {
				s.logger.WithError(err).Warn("Failed to rejoin incident room")
			}
		}

		s.logger.Info("Socket reconnected")
		return true
	}

	s.logger.Errorf("Giving up after %d reconnect attempts", s.cfg.MaxReconnects)
	return false
}

func (s *Socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close разрывает соединение; безопасен при повторных вызовах.
func (s *Socket) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}
