package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisMessageCache struct {
	client      *redis.Client
	prefix      string
	maxMessages int64
	ttl         time.Duration
}

// NewRedisMessageCache wraps a shared client; Close does not close it.
func NewRedisMessageCache(client *redis.Client, cfg config.CacheConfig) *RedisMessageCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "chat:room"
	}
	maxMessages := int64(cfg.MaxMessages)
	if maxMessages <= 0 {
		maxMessages = 50
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisMessageCache{
		client:      client,
		prefix:      prefix,
		maxMessages: maxMessages,
		ttl:         ttl,
	}
}

func (c *RedisMessageCache) BuildKey(roomID string) string {
	return fmt.Sprintf("%s:%s:messages", c.prefix, roomID)
}

func (c *RedisMessageCache) Append(ctx context.Context, msg *domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	key := c.BuildKey(msg.Room)
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -c.maxMessages, -1)
	pipe.Expire(ctx, key, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Recent(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	entries, err := c.client.LRange(ctx, c.BuildKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrCacheMiss
	}

	msgs := make([]domain.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("skipping unreadable cache entry")
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) == 0 {
		return nil, ErrCacheMiss
	}
	return msgs, nil
}

func (c *RedisMessageCache) Backfill(ctx context.Context, roomID string, msgs []domain.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for i := range msgs {
		data, err := json.Marshal(&msgs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}
		values = append(values, data)
	}

	key := c.BuildKey(roomID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		// A live Append won the race; older store rows must not land after it.
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, values...)
			pipe.LTrim(ctx, key, -c.maxMessages, -1)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to backfill redis: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Close() error {
	return nil
}
