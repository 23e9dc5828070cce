package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub - реестр комнат push-канала. Членство в комнатах меняется только
// при установке/разрыве соединения и явном join-incident-room; сама
// рассылка комнаты не мутирует. Доставка best-effort: медленный клиент
// с переполненным буфером отключается, повтора не будет.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Conn]struct{}
	conns  map[*Conn]map[string]struct{} // обратный индекс: соединение -> его комнаты
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Conn]struct{}),
		conns:  make(map[*Conn]map[string]struct{}),
		logger: logger,
	}
}

// join добавляет соединение в комнату
func (h *Hub) join(room string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if h.conns[c] == nil {
		h.conns[c] = make(map[string]struct{})
	}
	h.conns[c][room] = struct{}{}
}

// leaveAll убирает соединение из всех его комнат
func (h *Hub) leaveAll(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.conns[c] {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.conns, c)
}

// EmitToRoom отправляет событие всем соединениям комнаты.
func (h *Hub) EmitToRoom(room, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("Failed to marshal event payload")
		return
	}
	msg, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("Failed to marshal event envelope")
		return
	}

	h.mu.RLock()
	members := make([]*Conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(msg)
	}
}

// EmitToResponders отправляет событие в общую комнату диспетчеров.
func (h *Hub) EmitToResponders(event string, data any) {
	h.EmitToRoom(RoomResponders, event, data)
}

// RoomSize возвращает число соединений в комнате
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
