package alert

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel alerts are published on.
const DefaultChannel = "sellside:alerts"

// RedisPublisher publishes alerts as JSON on a Redis pub/sub channel so an
// on-call integration can subscribe to them.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a publisher. Empty channel uses DefaultChannel;
// a nil logger uses slog.Default().
func NewRedisPublisher(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// TokenCollision publishes the collision. Publish failures are logged.
func (p *RedisPublisher) TokenCollision(ctx context.Context, c TokenCollision) {
	if c.Type == "" {
		c.Type = TypeTokenCollision
	}
	payload, err := json.Marshal(c)
	if err != nil {
		p.logger.Error("encoding alert", "error", err)
		return
	}
	// The request may be aborted right after the alert; publish anyway.
	if err := p.client.Publish(context.WithoutCancel(ctx), p.channel, payload).Err(); err != nil {
		p.logger.Error("publishing alert",
			"channel", p.channel,
			"alert", c.Type,
			"error", err,
		)
	}
}
