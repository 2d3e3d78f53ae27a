package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher writes envelopes to a Redis stream. One stream carries all
// schedule events; consumers filter on the event field.
type RedisPublisher struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

// NewRedisPublisher connects to Redis and verifies reachability.
func NewRedisPublisher(ctx context.Context, redisURL, stream string, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPublisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "publisher"),
	}, nil
}

// NewRedisPublisherFromClient wraps an existing client (used by tests).
func NewRedisPublisherFromClient(client *redis.Client, stream string, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, logger: logger.With("component", "publisher")}
}

// Publish appends the envelope to the stream. Serialization failures are
// persistent (ErrBadPayload); everything else is treated as the broker
// being unavailable.
func (p *RedisPublisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"event":     env.Event,
			"dedup_key": env.DedupKey,
			"body":      string(body),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: xadd %s: %v", ErrUnavailable, p.stream, err)
	}
	return nil
}

// HealthCheck verifies the bus is reachable.
func (p *RedisPublisher) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases the connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
