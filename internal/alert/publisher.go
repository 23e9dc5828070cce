package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const alertQueueKey = "sos_alert_events"

// Event - уведомление экстренного контакта о сработавшем вызове.
// Ставится в очередь в отложенной фазе создания вызова; сбой доставки
// никогда не влияет на уже сохраненную запись.
type Event struct {
	DispatchID   string    `json:"dispatch_id"`
	UserName     string    `json:"user_name"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	MapsLink     string    `json:"maps_link"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEvent собирает событие с ссылкой на карту для получателя.
func NewEvent(dispatchID, userName string, lat, lon float64) Event {
	return Event{
		DispatchID: dispatchID,
		UserName:   userName,
		Latitude:   lat,
		Longitude:  lon,
		MapsLink:   fmt.Sprintf("https://maps.google.com/?q=%f,%f", lat, lon),
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher - интерфейс для постановки уведомлений в очередь
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher - реализация Publisher, использующая очередь Redis
type RedisPublisher struct {
	redisClient *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redisClient: client}
}

// Publish публикует событие в очередь Redis
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	// LPUSH в левую часть списка, воркер забирает BRPop справа
	if err := p.redisClient.LPush(ctx, alertQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert event to Redis: %w", err)
	}
	return nil
}
