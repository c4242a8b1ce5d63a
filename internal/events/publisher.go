// Package events announces session lifecycle changes to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"doccollab/internal/models"
)

const DefaultChannel = "document_sessions"

// RedisPublisher publishes session-closed events on a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	owned   bool
}

func NewRedisPublisher(ctx context.Context, addr, channel string) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	p := NewRedisPublisherWithClient(rdb, channel)
	p.owned = true
	return p, nil
}

// NewRedisPublisherWithClient reuses an existing client; Close leaves it open.
func NewRedisPublisherWithClient(rdb *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Channel() string {
	return p.channel
}

func (p *RedisPublisher) PublishSessionClosed(ctx context.Context, ev models.SessionClosedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal session event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish session event for %s: %w", ev.DocumentID, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.rdb.Close()
}
