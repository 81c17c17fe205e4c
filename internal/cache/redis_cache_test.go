package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, max int) (*RedisMessageCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := NewRedisMessageCache(client, config.CacheConfig{
		Prefix:      "chat:room",
		MaxMessages: max,
		TTL:         time.Hour,
	})
	return c, mr
}

func msg(room string, i int) *domain.ChatMessage {
	return &domain.ChatMessage{
		Content:   fmt.Sprintf("m%d", i),
		Sender:    "alice",
		Room:      room,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestBuildKey(t *testing.T) {
	c, _ := newTestCache(t, 50)
	if got := c.BuildKey("demo"); got != "chat:room:demo:messages" {
		t.Fatalf("key = %q", got)
	}
}

func TestAppendKeepsNewestN(t *testing.T) {
	const n = 5
	c, mr := newTestCache(t, n)
	ctx := context.Background()

	for i := 0; i < n+5; i++ {
		if err := c.Append(ctx, msg("demo", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := c.Recent(ctx, "demo")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != n {
		t.Fatalf("len = %d, want %d", len(got), n)
	}
	for i, m := range got {
		if want := fmt.Sprintf("m%d", i+5); m.Content != want {
			t.Errorf("got[%d] = %q, want %q", i, m.Content, want)
		}
	}
	if !got[0].CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)) {
		t.Errorf("createdAt = %v", got[0].CreatedAt)
	}

	if ttl := mr.TTL("chat:room:demo:messages"); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}
}

func TestRecentDoesNotRefreshTTL(t *testing.T) {
	c, mr := newTestCache(t, 50)
	ctx := context.Background()

	if err := c.Append(ctx, msg("demo", 1)); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(30 * time.Minute)

	if _, err := c.Recent(ctx, "demo"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("chat:room:demo:messages"); ttl != 30*time.Minute {
		t.Errorf("ttl after read = %v, want 30m", ttl)
	}

	mr.FastForward(31 * time.Minute)
	if _, err := c.Recent(ctx, "demo"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expired key: err = %v, want ErrCacheMiss", err)
	}
}

func TestRecentMiss(t *testing.T) {
	c, _ := newTestCache(t, 50)
	if _, err := c.Recent(context.Background(), "empty"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestRecentSkipsCorruptEntries(t *testing.T) {
	c, mr := newTestCache(t, 50)
	ctx := context.Background()

	mr.RPush("chat:room:demo:messages", "not json")
	if err := c.Append(ctx, msg("demo", 1)); err != nil {
		t.Fatal(err)
	}

	got, err := c.Recent(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "m1" {
		t.Fatalf("got %+v", got)
	}
}

func TestBackfill(t *testing.T) {
	c, mr := newTestCache(t, 3)
	ctx := context.Background()

	var msgs []domain.ChatMessage
	for i := 0; i < 5; i++ {
		msgs = append(msgs, *msg("demo", i))
	}
	if err := c.Backfill(ctx, "demo", msgs); err != nil {
		t.Fatalf("Backfill: %v", err)
	}

	got, err := c.Recent(ctx, "demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Content != "m2" || got[2].Content != "m4" {
		t.Fatalf("got %+v", got)
	}
	if ttl := mr.TTL("chat:room:demo:messages"); ttl != time.Hour {
		t.Errorf("ttl = %v", ttl)
	}
}

func TestBackfillSkipsWhenLiveWriteExists(t *testing.T) {
	c, _ := newTestCache(t, 50)
	ctx := context.Background()

	if err := c.Append(ctx, msg("demo", 9)); err != nil {
		t.Fatal(err)
	}
	if err := c.Backfill(ctx, "demo", []domain.ChatMessage{*msg("demo", 1)}); err != nil {
		t.Fatal(err)
	}

	got, _ := c.Recent(ctx, "demo")
	if len(got) != 1 || got[0].Content != "m9" {
		t.Fatalf("backfill should not touch a live list, got %+v", got)
	}
}
