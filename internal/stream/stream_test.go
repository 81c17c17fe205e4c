package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testStream = "stream:chat:message_sent"

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func testMessage(content string) *domain.ChatMessage {
	return &domain.ChatMessage{
		Content:   content,
		Sender:    "alice",
		Room:      "demo",
		CreatedAt: time.Date(2024, 5, 1, 12, 30, 0, 250000000, time.UTC),
	}
}

func TestRedisPublisherFields(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := NewRedisPublisher(client, testStream, 0)
	if err := p.PublishMessageSent(ctx, testMessage("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	entries, err := client.XRange(ctx, testStream, "-", "+").Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}

	want := map[string]string{
		"content":   "hello",
		"senderId":  "alice",
		"roomId":    "demo",
		"timestamp": "2024-05-01T12:30:00.250Z",
	}
	for k, v := range want {
		if got := entries[0].Values[k]; got != v {
			t.Errorf("%s = %v, want %q", k, got, v)
		}
	}
}

func TestRedisPublisherMaxLen(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	p := NewRedisPublisher(client, testStream, 3)
	for i := 0; i < 10; i++ {
		if err := p.PublishMessageSent(ctx, testMessage("m")); err != nil {
			t.Fatal(err)
		}
	}

	// approximate trimming only guarantees an upper bound loosely
	n, err := client.XLen(ctx, testStream).Result()
	if err != nil {
		t.Fatal(err)
	}
	if n > 10 || n < 3 {
		t.Fatalf("len = %d", n)
	}
}

func TestConsumerAcksHandledEntries(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	var got []MessageSentEvent
	c := NewConsumer(client, testStream, config.StreamConsumerConfig{
		Group: "audit", Name: "worker-1", Count: 10, Block: 10 * time.Millisecond,
	}, func(_ context.Context, e MessageSentEvent) error {
		got = append(got, e)
		return nil
	})

	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatal(err)
	}
	// second create hits BUSYGROUP and is tolerated
	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatalf("EnsureGroup twice: %v", err)
	}

	p := NewRedisPublisher(client, testStream, 0)
	p.PublishMessageSent(ctx, testMessage("one"))
	p.PublishMessageSent(ctx, testMessage("two"))

	acked, err := c.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if acked != 2 || len(got) != 2 {
		t.Fatalf("acked = %d, handled = %d", acked, len(got))
	}
	if got[0].Content != "one" || got[0].RoomID != "demo" || got[0].SenderID != "alice" {
		t.Errorf("event = %+v", got[0])
	}
	if !got[0].Timestamp.Equal(testMessage("").CreatedAt) {
		t.Errorf("timestamp = %v", got[0].Timestamp)
	}

	pending, err := client.XPending(ctx, testStream, "audit").Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 0 {
		t.Errorf("pending = %d, want 0", pending.Count)
	}
}

func TestConsumerLeavesFailedEntriesPending(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	c := NewConsumer(client, testStream, config.StreamConsumerConfig{
		Group: "audit", Name: "worker-1", Block: 10 * time.Millisecond,
	}, func(context.Context, MessageSentEvent) error {
		return errors.New("downstream unavailable")
	})
	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatal(err)
	}

	NewRedisPublisher(client, testStream, 0).PublishMessageSent(ctx, testMessage("x"))

	acked, err := c.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if acked != 0 {
		t.Fatalf("acked = %d, want 0", acked)
	}

	pending, err := client.XPending(ctx, testStream, "audit").Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 1 {
		t.Errorf("pending = %d, want 1", pending.Count)
	}
}

func TestConsumerRedeliversFailedEntries(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	calls := 0
	handler := func(context.Context, MessageSentEvent) error {
		calls++
		if calls == 1 {
			return errors.New("downstream unavailable")
		}
		return nil
	}
	cfg := config.StreamConsumerConfig{
		Group: "audit", Name: "worker-1", Block: 10 * time.Millisecond, RetryInterval: time.Nanosecond,
	}
	c := NewConsumer(client, testStream, cfg, handler)
	if err := c.EnsureGroup(ctx); err != nil {
		t.Fatal(err)
	}

	NewRedisPublisher(client, testStream, 0).PublishMessageSent(ctx, testMessage("x"))

	if acked, err := c.Poll(ctx); err != nil || acked != 0 {
		t.Fatalf("first poll acked=%d err=%v, want 0 and nil", acked, err)
	}
	time.Sleep(time.Millisecond)
	acked, err := c.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if acked != 1 || calls != 2 {
		t.Fatalf("acked = %d calls = %d, want 1 and 2", acked, calls)
	}

	pending, err := client.XPending(ctx, testStream, "audit").Result()
	if err != nil {
		t.Fatal(err)
	}
	if pending.Count != 0 {
		t.Errorf("pending = %d, want 0", pending.Count)
	}
}

func TestRestartedConsumerDrainsBacklog(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()
	cfg := config.StreamConsumerConfig{Group: "audit", Name: "worker-1", Block: 10 * time.Millisecond}

	failing := NewConsumer(client, testStream, cfg, func(context.Context, MessageSentEvent) error {
		return errors.New("crash")
	})
	if err := failing.EnsureGroup(ctx); err != nil {
		t.Fatal(err)
	}
	pub := NewRedisPublisher(client, testStream, 0)
	pub.PublishMessageSent(ctx, testMessage("a"))
	pub.PublishMessageSent(ctx, testMessage("b"))
	failing.Poll(ctx)

	var got []string
	restarted := NewConsumer(client, testStream, cfg, func(_ context.Context, ev MessageSentEvent) error {
		got = append(got, ev.Content)
		return nil
	})
	acked, err := restarted.Poll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if acked != 2 || len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("acked = %d handled = %v, want both entries in order", acked, got)
	}
}

func TestIndependentGroups(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	counts := map[string]int{}
	newGroup := func(name string) *Consumer {
		c := NewConsumer(client, testStream, config.StreamConsumerConfig{
			Group: name, Name: "w", Block: 10 * time.Millisecond,
		}, func(context.Context, MessageSentEvent) error {
			counts[name]++
			return nil
		})
		if err := c.EnsureGroup(ctx); err != nil {
			t.Fatal(err)
		}
		return c
	}
	a, b := newGroup("a"), newGroup("b")

	NewRedisPublisher(client, testStream, 0).PublishMessageSent(ctx, testMessage("x"))

	a.Poll(ctx)
	b.Poll(ctx)
	if counts["a"] != 1 || counts["b"] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestConsumerRunStopsOnCancel(t *testing.T) {
	client, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	c := NewConsumer(client, testStream, config.StreamConsumerConfig{
		Group: "audit", Name: "w", Block: 10 * time.Millisecond,
	}, func(context.Context, MessageSentEvent) error { return nil })

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
