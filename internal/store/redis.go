package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"doccollab/internal/models"
)

// RedisStore keeps content as a string key and comments as a JSON list.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(rdb), nil
}

func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "doc:"}
}

func (s *RedisStore) contentKey(id string) string  { return s.prefix + id + ":content" }
func (s *RedisStore) commentsKey(id string) string { return s.prefix + id + ":comments" }

func (s *RedisStore) Load(ctx context.Context, documentID string) (string, error) {
	content, err := s.rdb.Get(ctx, s.contentKey(documentID)).Result()
	if err == redis.Nil {
		return "", models.ErrDocumentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load document %s: %w", documentID, err)
	}
	return content, nil
}

func (s *RedisStore) SaveContent(ctx context.Context, documentID, content string) error {
	if err := s.rdb.Set(ctx, s.contentKey(documentID), content, 0).Err(); err != nil {
		return fmt.Errorf("save document %s: %w", documentID, err)
	}
	return nil
}

func (s *RedisStore) AppendComment(ctx context.Context, c models.Comment) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal comment: %w", err)
	}
	if err := s.rdb.RPush(ctx, s.commentsKey(c.DocumentID), data).Err(); err != nil {
		return fmt.Errorf("append comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *RedisStore) ListComments(ctx context.Context, documentID string) ([]models.Comment, error) {
	raw, err := s.rdb.LRange(ctx, s.commentsKey(documentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list comments %s: %w", documentID, err)
	}
	out := make([]models.Comment, 0, len(raw))
	for _, item := range raw {
		var c models.Comment
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("decode comment: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
