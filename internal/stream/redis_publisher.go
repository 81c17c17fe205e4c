package stream

import (
	"context"
	"fmt"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher appends to stream on a shared client. maxLen <= 0 keeps the stream unbounded.
func NewRedisPublisher(client *redis.Client, stream string, maxLen int64) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (p *RedisPublisher) PublishMessageSent(ctx context.Context, msg *domain.ChatMessage) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: NewMessageSentEvent(msg).Values(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", p.stream, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return nil
}
