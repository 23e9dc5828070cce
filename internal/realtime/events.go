package realtime

import "encoding/json"

// События сервер -> клиент.
const (
	EventIncidentCreated = "incident-created"
	EventStatusChanged   = "status-changed"
	EventAudioAttached   = "audio-attached"
	EventLiveLocation    = "live-location"
)

// События клиент -> сервер.
const (
	EventJoinIncidentRoom = "join-incident-room"
	EventLocationUpdate   = "location-update"
)

// Комнаты. Порядок доставки гарантируется только внутри одной комнаты,
// журнала сообщений нет: поздно подключившийся клиент сначала забирает
// текущее состояние обычным запросом и только потом доверяет дельтам.
const RoomResponders = "responders"

// RoomForUser - персональная комната пользователя.
func RoomForUser(userID string) string {
	return "user-" + userID
}

// RoomForIncident - комната живой геолокации конкретного вызова.
func RoomForIncident(dispatchID string) string {
	return "sos-" + dispatchID
}

// Envelope - обертка каждого сообщения канала.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LocationPayload - полезная нагрузка location-update / live-location.
// DispatchID заполнен для живой позиции пострадавшего устройства и
// пуст для собственной позиции диспетчера.
type LocationPayload struct {
	DispatchID string  `json:"dispatch_id,omitempty"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// JoinIncidentPayload - полезная нагрузка join-incident-room.
type JoinIncidentPayload struct {
	DispatchID string `json:"dispatch_id"`
}
