package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier fans events out to real-time subscribers (the agent UI and the
// chat widget). Fire and forget: no acknowledgment, failures are logged.
type Notifier interface {
	EmitToTicket(ctx context.Context, ticketID string, eventName string, payload any)
}

// RedisNotifier publishes to a per-ticket pub/sub channel consumed by the
// socket layer.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier wraps the given client.
func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) EmitToTicket(ctx context.Context, ticketID string, eventName string, payload any) {
	body, err := json.Marshal(map[string]any{
		"event":   eventName,
		"payload": payload,
	})
	if err != nil {
		n.logger.Warn("notifier marshal failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	if err := n.client.Publish(ctx, "ticket:"+ticketID, body).Err(); err != nil {
		n.logger.Warn("notifier publish failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

// NopNotifier discards all emissions; used when Redis is not configured.
type NopNotifier struct{}

func (NopNotifier) EmitToTicket(context.Context, string, string, any) {}
