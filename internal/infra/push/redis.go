package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"routecast/internal/domain/notification"

	"github.com/redis/go-redis/v9"
)

var _ notification.Sender = (*RedisSender)(nil)

const (
	userChannelPrefix = "routecast:push:user:"
	broadcastChannel  = "routecast:push:broadcast"
)

// RedisSender delivers the real-time channel by publishing to Redis pub/sub.
// Gateway instances holding the recipient's live sessions subscribe to the
// per-user channel and forward the payload. Best effort: nothing is queued
// for offline recipients — the persisted notification is the durable record
// the client fetches on reconnect.
type RedisSender struct {
	client *redis.Client
}

// NewRedisSender creates a new Redis-backed push sender.
func NewRedisSender(redisAddr, password string, db int) *RedisSender {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return &RedisSender{client: client}
}

// Channel returns the push channel identifier.
func (s *RedisSender) Channel() notification.Channel {
	return notification.ChannelPush
}

// pushPayload is the wire format forwarded to connected sessions.
type pushPayload struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Route     string    `json:"route,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Send publishes the notification to the recipient's sessions. A positive
// receiver count confirms delivery; zero receivers means the recipient is
// offline and the outcome stays at Sent.
func (s *RedisSender) Send(ctx context.Context, n *notification.Notification, user *notification.User) (*notification.DeliveryResult, error) {
	payload, err := json.Marshal(pushPayload{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Route:     n.Route,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling push payload: %w", err)
	}

	receivers, err := s.client.Publish(ctx, userChannelPrefix+user.ID, payload).Result()
	if err != nil {
		return nil, fmt.Errorf("publishing push: %w", err)
	}

	outcome := notification.OutcomeSent
	if receivers > 0 {
		outcome = notification.OutcomeDelivered
	}
	return &notification.DeliveryResult{Outcome: outcome}, nil
}

// PushToAll publishes an announcement to every connected session and returns
// the receiver count.
func (s *RedisSender) PushToAll(ctx context.Context, title, message string) (int, error) {
	payload, err := json.Marshal(pushPayload{
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("marshaling broadcast payload: %w", err)
	}

	receivers, err := s.client.Publish(ctx, broadcastChannel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publishing broadcast: %w", err)
	}
	return int(receivers), nil
}

// Close closes the Redis connection.
func (s *RedisSender) Close() error {
	return s.client.Close()
}
