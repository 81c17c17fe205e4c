package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/hub"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/pubsub"
)

// Bridge extends a local hub across relay instances sharing a pub/sub bus.
// Membership of remote connections is mirrored from join/leave events, room
// broadcasts are fanned out to peers, and direct sends to a remote connection
// are routed to the instance that owns it.
type Bridge struct {
	local      *hub.Hub
	ps         pubsub.PubSub
	instanceID string

	mu     sync.RWMutex
	rooms  map[string][]string // roomID -> remote connIDs in join order
	owners map[string]string   // remote connID -> instanceID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBridge(local *hub.Hub, ps pubsub.PubSub, instanceID string) *Bridge {
	return &Bridge{
		local:      local,
		ps:         ps,
		instanceID: instanceID,
		rooms:      make(map[string][]string),
		owners:     make(map[string]string),
	}
}

func (b *Bridge) InstanceID() string {
	return b.instanceID
}

// Start subscribes to the cluster channels and asks peers for their members.
func (b *Bridge) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	channels := []string{
		pubsub.ChannelMembership,
		pubsub.ChannelBroadcast,
		pubsub.InstanceDirectChannel(b.instanceID),
	}
	for _, ch := range channels {
		events, err := b.ps.Subscribe(ctx, ch)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", ch, err)
		}
		b.wg.Add(1)
		go b.consume(ctx, events)
	}

	l := log.L()
	l.Info().Str(log.FieldInstance, b.instanceID).Msg("cluster bridge started")

	return b.publish(ctx, pubsub.ChannelMembership, pubsub.EventMembershipSync, "", struct{}{})
}

// Stop unsubscribes and waits for the consumers to exit.
func (b *Bridge) Stop() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()

	ctx := context.Background()
	b.ps.Unsubscribe(ctx, pubsub.ChannelMembership)
	b.ps.Unsubscribe(ctx, pubsub.ChannelBroadcast)
	b.ps.Unsubscribe(ctx, pubsub.InstanceDirectChannel(b.instanceID))
	b.wg.Wait()
	return nil
}

// JoinRoom joins locally; the greeting lists remote members first, then local
// ones. The announcement reaches local prior members under the hub lock and
// remote ones through the broadcast channel.
func (b *Bridge) JoinRoom(clientID, roomID string, greet hub.GreetFunc, announce interface{}) ([]string, error) {
	var existing []string
	var err error
	if greet == nil {
		var local []string
		local, err = b.local.JoinRoom(clientID, roomID, nil, announce)
		existing = append(b.remoteMembers(roomID), local...)
	} else {
		_, err = b.local.JoinRoom(clientID, roomID, func(local []string) interface{} {
			existing = append(b.remoteMembers(roomID), local...)
			return greet(existing)
		}, announce)
	}
	if err != nil {
		return existing, err
	}

	ctx := context.Background()
	if announce != nil && len(b.remoteMembers(roomID)) > 0 {
		if err := b.publishFrame(ctx, roomID, announce, clientID); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to announce join to peers")
		}
	}

	if err := b.publish(ctx, pubsub.ChannelMembership, pubsub.EventMemberJoined, roomID,
		&pubsub.MembershipPayload{ConnID: clientID}); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to publish member_joined")
	}
	return existing, nil
}

func (b *Bridge) LeaveRoom(clientID, roomID string) bool {
	if !b.local.LeaveRoom(clientID, roomID) {
		return false
	}

	if err := b.publish(context.Background(), pubsub.ChannelMembership, pubsub.EventMemberLeft, roomID,
		&pubsub.MembershipPayload{ConnID: clientID}); err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to publish member_left")
	}
	return true
}

func (b *Bridge) RoomsOf(clientID string) []string {
	return b.local.RoomsOf(clientID)
}

func (b *Bridge) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	b.local.BroadcastRaw(roomID, data, exclude)

	if len(b.remoteMembers(roomID)) == 0 {
		return nil
	}
	return b.publishRaw(context.Background(), roomID, data, exclude)
}

func (b *Bridge) publishFrame(ctx context.Context, roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return b.publishRaw(ctx, roomID, data, exclude)
}

func (b *Bridge) publishRaw(ctx context.Context, roomID string, data []byte, exclude string) error {
	return b.publish(ctx, pubsub.ChannelBroadcast, pubsub.EventRoomBroadcast, roomID,
		&pubsub.BroadcastPayload{Exclude: exclude, Frame: data})
}

// SendToClient delivers locally or forwards to the owning instance. Unknown ids are ignored.
func (b *Bridge) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if b.local.SendRaw(clientID, data) {
		return nil
	}

	b.mu.RLock()
	owner, ok := b.owners[clientID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	return b.publish(context.Background(), pubsub.InstanceDirectChannel(owner), pubsub.EventDirectMessage, "",
		&pubsub.DirectPayload{ConnID: clientID, Frame: data})
}

func (b *Bridge) remoteMembers(roomID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	members := b.rooms[roomID]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

func (b *Bridge) publish(ctx context.Context, channel, eventType, roomID string, payload interface{}) error {
	event, err := pubsub.NewEvent(eventType, b.instanceID, roomID, payload)
	if err != nil {
		return err
	}
	return b.ps.Publish(ctx, channel, event)
}

func (b *Bridge) consume(ctx context.Context, events <-chan *pubsub.Event) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Origin == b.instanceID {
				continue
			}
			b.handle(ctx, event)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, event *pubsub.Event) {
	l := log.L().With().Str(log.FieldInstance, event.Origin).Str(log.FieldEvent, event.Type).Logger()

	switch event.Type {
	case pubsub.EventMemberJoined:
		var p pubsub.MembershipPayload
		if err := event.UnmarshalPayload(&p); err != nil {
			l.Warn().Err(err).Msg("bad membership payload")
			return
		}
		b.addRemote(event.RoomID, p.ConnID, event.Origin)

	case pubsub.EventMemberLeft:
		var p pubsub.MembershipPayload
		if err := event.UnmarshalPayload(&p); err != nil {
			l.Warn().Err(err).Msg("bad membership payload")
			return
		}
		b.removeRemote(event.RoomID, p.ConnID)

	case pubsub.EventRoomBroadcast:
		var p pubsub.BroadcastPayload
		if err := event.UnmarshalPayload(&p); err != nil {
			l.Warn().Err(err).Msg("bad broadcast payload")
			return
		}
		b.local.BroadcastRaw(event.RoomID, p.Frame, p.Exclude)

	case pubsub.EventDirectMessage:
		var p pubsub.DirectPayload
		if err := event.UnmarshalPayload(&p); err != nil {
			l.Warn().Err(err).Msg("bad direct payload")
			return
		}
		b.local.SendRaw(p.ConnID, p.Frame)

	case pubsub.EventMembershipSync:
		for roomID, members := range b.local.Snapshot() {
			for _, connID := range members {
				if err := b.publish(ctx, pubsub.ChannelMembership, pubsub.EventMemberJoined, roomID,
					&pubsub.MembershipPayload{ConnID: connID}); err != nil {
					l.Warn().Err(err).Msg("failed to answer membership sync")
					return
				}
			}
		}

	default:
		l.Debug().Msg("ignoring cluster event")
	}
}

func (b *Bridge) addRemote(roomID, connID, instanceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.owners[connID] = instanceID
	for _, id := range b.rooms[roomID] {
		if id == connID {
			return
		}
	}
	b.rooms[roomID] = append(b.rooms[roomID], connID)
}

func (b *Bridge) removeRemote(roomID, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	members := b.rooms[roomID]
	for i, id := range members {
		if id == connID {
			b.rooms[roomID] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(b.rooms[roomID]) == 0 {
		delete(b.rooms, roomID)
	}

	// forget the owner once the connection is in no mirrored room
	for _, ids := range b.rooms {
		for _, id := range ids {
			if id == connID {
				return
			}
		}
	}
	delete(b.owners, connID)
}
