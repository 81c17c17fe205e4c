package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestEventEncoding(t *testing.T) {
	ev, err := NewEvent(EventMemberJoined, "i1", "demo", &MembershipPayload{ConnID: "A"})
	if err != nil {
		t.Fatal(err)
	}
	data, err := ev.Encode()
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatal(err)
	}
	var p MembershipPayload
	if err := got.UnmarshalPayload(&p); err != nil {
		t.Fatal(err)
	}
	if got.Type != EventMemberJoined || got.Origin != "i1" || got.RoomID != "demo" || p.ConnID != "A" {
		t.Fatalf("decoded %+v payload %+v", got, p)
	}

	if _, err := DecodeEvent([]byte(`{"origin":"i1"}`)); !errors.Is(err, ErrMissingType) {
		t.Fatalf("err = %v, want ErrMissingType", err)
	}
	if _, err := (&Event{}).Encode(); !errors.Is(err, ErrMissingType) {
		t.Fatalf("err = %v, want ErrMissingType", err)
	}
}

func TestRedisPubSubRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ps := NewRedisPubSubFromClient(client)
	ctx := context.Background()

	events, err := ps.Subscribe(ctx, ChannelBroadcast)
	if err != nil {
		t.Fatal(err)
	}

	// garbage on the channel is skipped
	if err := client.Publish(ctx, ChannelBroadcast, "not-json").Err(); err != nil {
		t.Fatal(err)
	}
	ev, _ := NewEvent(EventRoomBroadcast, "i2", "demo", &BroadcastPayload{Frame: []byte(`{"type":"x"}`)})
	if err := ps.Publish(ctx, ChannelBroadcast, ev); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-events:
		if got.Type != EventRoomBroadcast || got.Origin != "i2" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	if err := ps.Close(); err != nil {
		t.Fatal(err)
	}
	// Close leaves a borrowed client usable.
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("client closed with the bus: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after Close")
	}
}
