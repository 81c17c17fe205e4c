package service

import (
	"context"
	"encoding/json"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/hub"
)

// RoomHub is the room registry and delivery surface the services route through.
// *hub.Hub serves a single instance; the cluster bridge serves several.
type RoomHub interface {
	JoinRoom(clientID, roomID string, greet hub.GreetFunc, announce interface{}) ([]string, error)
	LeaveRoom(clientID, roomID string) bool
	RoomsOf(clientID string) []string
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
	SendToClient(clientID string, message interface{}) error
}

// SignalService handles room membership and peer signaling.
type SignalService interface {
	// HandleJoinRoom adds the client to a room, greets it with the prior members,
	// tells the others and sends the room's history.
	HandleJoinRoom(ctx context.Context, client *hub.Client, roomID string) error

	// HandleLeaveRoom removes the client from a room.
	HandleLeaveRoom(ctx context.Context, client *hub.Client, roomID string) error

	HandleOffer(ctx context.Context, client *hub.Client, to string, offer json.RawMessage) error
	HandleAnswer(ctx context.Context, client *hub.Client, to string, answer json.RawMessage) error
	HandleICECandidate(ctx context.Context, client *hub.Client, to string, candidate json.RawMessage) error

	// HandleAnnounceName forwards a display name to the room's other members.
	HandleAnnounceName(ctx context.Context, client *hub.Client, roomID, name string) error

	// HandleChatMessage posts a chat line on behalf of the client.
	HandleChatMessage(ctx context.Context, client *hub.Client, roomID, content, senderID string) error

	// HandleDisconnect tells every joined room that the client left.
	HandleDisconnect(ctx context.Context, client *hub.Client) error
}

// ChatService fans chat messages out live and to the store, cache and stream.
type ChatService interface {
	// SendMessage broadcasts live to the room except connID and queues the store,
	// cache and stream writes behind the room's earlier messages. It returns
	// without waiting for them. Only invalid input is reported.
	SendMessage(ctx context.Context, connID, content, roomID, sender string) error

	// GetHistory returns up to the cache bound of recent messages, oldest first.
	// It never fails; backend errors yield an empty slice.
	GetHistory(ctx context.Context, roomID string) []domain.ChatMessage

	// Wait blocks until queued writes and background cache backfills finish.
	Wait()
}
