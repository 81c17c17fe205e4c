package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/redis/go-redis/v9"
)

// Handler processes one event. Returning an error leaves the entry pending.
type Handler func(ctx context.Context, event MessageSentEvent) error

// Consumer reads a Redis stream as a member of a consumer group.
type Consumer struct {
	client  *redis.Client
	stream  string
	group   string
	name    string
	count   int64
	block   time.Duration
	handler Handler
	backoff time.Duration

	retryEvery time.Duration
	lastRetry  time.Time
}

func NewConsumer(client *redis.Client, stream string, cfg config.StreamConsumerConfig, handler Handler) *Consumer {
	count := cfg.Count
	if count <= 0 {
		count = 10
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}

	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 30 * time.Second
	}

	return &Consumer{
		client:  client,
		stream:  stream,
		group:   cfg.Group,
		name:    cfg.Name,
		count:   count,
		block:   block,
		handler: handler,
		backoff: time.Second,

		retryEvery: retry,
	}
}

// EnsureGroup creates the group at the start of the stream, creating the stream if needed.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Run reads and acknowledges entries until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	l := pkglog.L().With().
		Str("stream", c.stream).
		Str("group", c.group).
		Str("consumer", c.name).
		Logger()
	l.Info().Msg("stream consumer started")

	for {
		if ctx.Err() != nil {
			l.Info().Msg("stream consumer stopped")
			return nil
		}

		if _, err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			l.Error().Err(err).Msg("error reading from stream")
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

// Poll performs one XREADGROUP round and returns the number of acknowledged
// entries. The consumer's own pending entries are redelivered first, on the
// first poll and then once per retry interval.
func (c *Consumer) Poll(ctx context.Context) (int, error) {
	acked := 0
	if c.lastRetry.IsZero() || time.Since(c.lastRetry) >= c.retryEvery {
		n, err := c.retryPending(ctx)
		acked += n
		if err != nil {
			return acked, err
		}
		c.lastRetry = time.Now()
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    c.count,
		Block:    c.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return acked, nil
	}
	if err != nil {
		return acked, err
	}

	for _, s := range streams {
		for _, msg := range s.Messages {
			if c.handle(ctx, msg) {
				acked++
			}
		}
	}
	return acked, nil
}

// retryPending walks this consumer's pending list once, oldest first.
// Entries that fail again stay pending for the next round.
func (c *Consumer) retryPending(ctx context.Context) (int, error) {
	acked := 0
	cursor := "0"
	for {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{c.stream, cursor},
			Count:    c.count,
			Block:    -1,
		}).Result()
		if errors.Is(err, redis.Nil) {
			return acked, nil
		}
		if err != nil {
			return acked, err
		}

		seen := 0
		for _, s := range streams {
			for _, msg := range s.Messages {
				seen++
				cursor = msg.ID
				if c.handle(ctx, msg) {
					acked++
				}
			}
		}
		if seen == 0 {
			return acked, nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) bool {
	l := pkglog.Ctx(ctx)

	event, err := parseEntry(msg.ID, msg.Values)
	if err != nil {
		// Unparseable entries can never succeed; ack them so they do not pile up.
		l.Warn().Err(err).Str("entry_id", msg.ID).Msg("dropping malformed stream entry")
		return c.ack(ctx, msg.ID)
	}

	if err := c.handler(ctx, event); err != nil {
		l.Error().Err(err).Str("entry_id", msg.ID).Msg("stream handler failed, entry left pending")
		return false
	}
	return c.ack(ctx, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, id string) bool {
	if err := c.client.XAck(ctx, c.stream, c.group, id).Err(); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("entry_id", id).Msg("failed to ack stream entry")
		return false
	}
	return true
}
