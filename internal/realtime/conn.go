package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/sos_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// ResponderDirectory - запись собственной позиции диспетчера.
// Реализуется репозиторием пользователей.
type ResponderDirectory interface {
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lon float64) error
}

// Conn - одно аутентифицированное соединение канала.
type Conn struct {
	ws     *websocket.Conn
	hub    *Hub
	logger *logrus.Logger

	userID uuid.UUID
	role   models.Role

	directory ResponderDirectory

	// sendMu закрывает гонку между enqueue из рассылки и close:
	// канал send закрывается только под замком, доставка в уже
	// закрытое соединение молча отбрасывается.
	sendMu sync.Mutex
	closed bool
	send   chan []byte
}

func newConn(ws *websocket.Conn, hub *Hub, logger *logrus.Logger, directory ResponderDirectory, userID uuid.UUID, role models.Role) *Conn {
	return &Conn{
		ws:        ws,
		hub:       hub,
		logger:    logger,
		userID:    userID,
		role:      role,
		directory: directory,
		send:      make(chan []byte, sendBuffer),
	}
}

// start присоединяет соединение к его комнатам и запускает насосы.
// Персональная комната есть у каждого, диспетчеры дополнительно входят
// в общую комнату responders.
func (c *Conn) start() {
	c.hub.join(RoomForUser(c.userID.String()), c)
	if c.role.CanDispatch() {
		c.hub.join(RoomResponders, c)
	}

	go c.writePump()
	go c.readPump()
}

// enqueue ставит сообщение в очередь отправки. Переполненный буфер
// означает мертвое или безнадежно медленное соединение - закрываем.
// Для соединения, закрытого между снимком комнаты и доставкой,
// вызов безопасен и ничего не делает.
func (c *Conn) enqueue(msg []byte) {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return
	}
	select {
	case c.send <- msg:
		c.sendMu.Unlock()
	default:
		c.sendMu.Unlock()
		c.close()
	}
}

func (c *Conn) close() {
	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.sendMu.Unlock()

	c.hub.leaveAll(c)
}

// readPump читает входящие события клиента до разрыва соединения.
func (c *Conn) readPump() {
	defer func() {
		c.close()
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	log := c.logger.WithFields(logrus.Fields{
		"component": "realtime",
		"user_id":   c.userID,
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Unexpected socket close")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.WithError(err).Warn("Failed to decode inbound envelope")
			continue
		}

		switch env.Event {
		case EventJoinIncidentRoom:
			var p JoinIncidentPayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.DispatchID == "" {
				log.Warn("Malformed join-incident-room payload")
				continue
			}
			c.hub.join(RoomForIncident(p.DispatchID), c)

		case EventLocationUpdate:
			var p LocationPayload
			if err := json.Unmarshal(env.Data, &p); err != nil {
				log.Warn("Malformed location-update payload")
				continue
			}
			c.handleLocationUpdate(p, log)

		default:
			log.WithField("event", env.Event).Debug("Ignoring unknown inbound event")
		}
	}
}

// handleLocationUpdate ретранслирует живую позицию устройства в комнату
// вызова либо записывает собственную позицию диспетчера в справочник.
func (c *Conn) handleLocationUpdate(p LocationPayload, log *logrus.Entry) {
	if p.DispatchID != "" {
		c.hub.EmitToRoom(RoomForIncident(p.DispatchID), EventLiveLocation, p)
		return
	}

	// Позицию в справочнике обновляет только сам диспетчер.
	if !c.role.CanDispatch() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.directory.UpdateLocation(ctx, c.userID, p.Latitude, p.Longitude); err != nil {
		log.WithError(err).Error("Failed to update responder location")
	}
}

// writePump пишет исходящие сообщения и пинги.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
