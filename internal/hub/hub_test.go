package hub

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
)

func newTestHub() *Hub {
	return NewHub(config.WebSocketConfig{SendBuffer: 8})
}

func addClient(h *Hub, id string) *Client {
	c := NewClient(id, h, nil)
	h.Register(c)
	return c
}

func drain(c *Client) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return out
			}
			var m map[string]interface{}
			_ = json.Unmarshal(data, &m)
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestJoinRoomReturnsPriorMembersInOrder(t *testing.T) {
	h := newTestHub()
	for _, id := range []string{"a", "b", "c"} {
		addClient(h, id)
	}

	if got, _ := h.JoinRoom("a", "demo", nil, nil); len(got) != 0 {
		t.Fatalf("first joiner got %v, want empty", got)
	}
	if got, _ := h.JoinRoom("b", "demo", nil, nil); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("second joiner got %v", got)
	}
	got, _ := h.JoinRoom("c", "demo", nil, nil)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("third joiner got %v", got)
	}

	// idempotent re-join
	got, _ = h.JoinRoom("a", "demo", nil, nil)
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("re-join got %v", got)
	}
	if members := h.MembersOf("demo", ""); !reflect.DeepEqual(members, []string{"a", "b", "c"}) {
		t.Fatalf("members = %v", members)
	}
}

func TestJoinRoomUnknownClient(t *testing.T) {
	h := newTestHub()
	if _, err := h.JoinRoom("ghost", "demo", nil, nil); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestJoinRoomGreetsJoiner(t *testing.T) {
	h := newTestHub()
	addClient(h, "a")
	b := addClient(h, "b")
	h.JoinRoom("a", "demo", nil, nil)

	_, err := h.JoinRoom("b", "demo", func(existing []string) interface{} {
		return map[string]interface{}{"type": "greet", "users": existing}
	}, nil)
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	frames := drain(b)
	if len(frames) != 1 || frames[0]["type"] != "greet" {
		t.Fatalf("frames = %v", frames)
	}
	users := frames[0]["users"].([]interface{})
	if len(users) != 1 || users[0] != "a" {
		t.Fatalf("users = %v", users)
	}
}

func TestJoinAnnouncementReachesOnlyPriorMembers(t *testing.T) {
	h := newTestHub()
	a, b, c := addClient(h, "a"), addClient(h, "b"), addClient(h, "c")

	for _, id := range []string{"a", "b", "c"} {
		if _, err := h.JoinRoom(id, "demo", nil, map[string]string{"type": "user-joined", "conn_id": id}); err != nil {
			t.Fatal(err)
		}
	}

	joinedIDs := func(c *Client) []string {
		var ids []string
		for _, f := range drain(c) {
			ids = append(ids, f["conn_id"].(string))
		}
		return ids
	}
	if got := joinedIDs(a); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("a saw %v, want [b c]", got)
	}
	if got := joinedIDs(b); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("b saw %v, want [c]", got)
	}
	if got := joinedIDs(c); len(got) != 0 {
		t.Errorf("c saw %v, want nothing", got)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := newTestHub()
	a, b, c := addClient(h, "a"), addClient(h, "b"), addClient(h, "c")
	h.JoinRoom("a", "demo", nil, nil)
	h.JoinRoom("b", "demo", nil, nil)
	h.JoinRoom("c", "other", nil, nil)

	if err := h.BroadcastToRoom("demo", map[string]string{"type": "x"}, "a"); err != nil {
		t.Fatal(err)
	}

	if n := len(drain(a)); n != 0 {
		t.Errorf("sender received %d frames", n)
	}
	if n := len(drain(b)); n != 1 {
		t.Errorf("member received %d frames, want 1", n)
	}
	if n := len(drain(c)); n != 0 {
		t.Errorf("non-member received %d frames", n)
	}
}

func TestSendToClient(t *testing.T) {
	h := newTestHub()
	a := addClient(h, "a")
	b := addClient(h, "b")

	if err := h.SendToClient("b", map[string]string{"type": "x"}); err != nil {
		t.Fatal(err)
	}
	if err := h.SendToClient("missing", map[string]string{"type": "x"}); err != nil {
		t.Fatalf("unknown target should be a no-op, got %v", err)
	}

	if n := len(drain(a)); n != 0 {
		t.Errorf("a received %d frames", n)
	}
	if n := len(drain(b)); n != 1 {
		t.Errorf("b received %d frames, want 1", n)
	}
}

func TestLeaveAndUnregister(t *testing.T) {
	h := newTestHub()
	a := addClient(h, "a")
	addClient(h, "b")
	h.JoinRoom("a", "r1", nil, nil)
	h.JoinRoom("a", "r2", nil, nil)
	h.JoinRoom("b", "r2", nil, nil)

	if rooms := h.RoomsOf("a"); !reflect.DeepEqual(rooms, []string{"r1", "r2"}) {
		t.Fatalf("rooms = %v", rooms)
	}

	if !h.LeaveRoom("a", "r1") {
		t.Fatal("expected a to be a member of r1")
	}
	if h.LeaveRoom("a", "r1") {
		t.Fatal("second leave should report false")
	}
	if h.RoomCount() != 1 {
		t.Fatalf("empty room should be deleted, rooms = %d", h.RoomCount())
	}

	h.Unregister(a)
	if h.HasClient("a") {
		t.Fatal("a still registered")
	}
	if members := h.MembersOf("r2", ""); !reflect.DeepEqual(members, []string{"b"}) {
		t.Fatalf("members = %v", members)
	}
	if _, ok := <-a.Send; ok {
		t.Fatal("send channel should be closed")
	}

	// a second unregister must not panic on the closed channel
	h.Unregister(a)
}

func TestSlowClientIsDropped(t *testing.T) {
	h := NewHub(config.WebSocketConfig{SendBuffer: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	addClient(h, "slow")
	h.SendToClient("slow", "one")
	h.SendToClient("slow", "two")

	deadline := time.Now().Add(2 * time.Second)
	for h.HasClient("slow") {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
