package consultations

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStatusChannel is the pub/sub channel status events are published on.
const DefaultStatusChannel = "consultations:status"

// StatusEvent is published whenever a consultation changes status.
type StatusEvent struct {
	ConsultationID string `json:"consultation_id"`
	Status         Status `json:"status"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Notifier fans status events out to interested listeners.
type Notifier interface {
	Publish(ctx context.Context, evt StatusEvent) error
}

// NopNotifier drops events.
type NopNotifier struct{}

// Publish does nothing.
func (NopNotifier) Publish(context.Context, StatusEvent) error { return nil }

// RedisNotifier publishes status events on a Redis channel.
type RedisNotifier struct {
	Client  *redis.Client
	Channel string
}

// NewRedisNotifier constructs a RedisNotifier.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultStatusChannel
	}
	return &RedisNotifier{Client: client, Channel: channel}
}

// Publish encodes evt as JSON and publishes it.
func (n *RedisNotifier) Publish(ctx context.Context, evt StatusEvent) error {
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return n.Client.Publish(ctx, n.Channel, payload).Err()
}

var (
	_ Notifier = NopNotifier{}
	_ Notifier = (*RedisNotifier)(nil)
)
