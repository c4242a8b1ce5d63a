package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccollab/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPublishSessionClosed(t *testing.T) {
	_, rdb := setupTestRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "sessions-test")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := NewRedisPublisherWithClient(rdb, "sessions-test")
	opened := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := models.SessionClosedEvent{
		DocumentID: "42",
		InstanceID: "instance-a",
		Comments:   2,
		OpenedAt:   opened,
		ClosedAt:   opened.Add(time.Minute),
	}
	require.NoError(t, p.PublishSessionClosed(ctx, ev))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "sessions-test", msg.Channel)
		var got models.SessionClosedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "42", got.DocumentID)
		assert.Equal(t, "instance-a", got.InstanceID)
		assert.Equal(t, 2, got.Comments)
		assert.True(t, got.ClosedAt.Equal(ev.ClosedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("no session event received")
	}
}

func TestPublisherDefaultsChannel(t *testing.T) {
	_, rdb := setupTestRedis(t)
	p := NewRedisPublisherWithClient(rdb, "")
	assert.Equal(t, DefaultChannel, p.Channel())
	assert.NoError(t, p.Close(), "borrowed client is left open")
	assert.NoError(t, rdb.Ping(context.Background()).Err())
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	p := NewRedisPublisherWithClient(rdb, "x")
	mr.Close()

	err := p.PublishSessionClosed(context.Background(), models.SessionClosedEvent{DocumentID: "9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9")
}

func TestNewRedisPublisher(t *testing.T) {
	mr, _ := setupTestRedis(t)

	p, err := NewRedisPublisher(context.Background(), mr.Addr(), "chan")
	require.NoError(t, err)
	assert.NoError(t, p.Close())

	_, err = NewRedisPublisher(context.Background(), "127.0.0.1:1", "chan")
	assert.Error(t, err)
}
