package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
)

var ErrClientNotFound = errors.New("client not found")

// GreetFunc builds the frame queued to a joiner from the members already in the room.
type GreetFunc func(existing []string) interface{}

type room struct {
	members map[string]*Client
	order   []string // join order
}

func (r *room) remove(clientID string) bool {
	if _, ok := r.members[clientID]; !ok {
		return false
	}
	delete(r.members, clientID)
	for i, id := range r.order {
		if id == clientID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Hub manages all WebSocket connections and their room memberships.
type Hub struct {
	clients map[string]*Client
	rooms   map[string]*room
	joined  map[string][]string // clientID -> roomIDs in join order
	slow    chan *Client
	mu      sync.RWMutex
	config  config.WebSocketConfig
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]*room),
		joined:  make(map[string][]string),
		slow:    make(chan *Client, 64),
		config:  cfg,
	}
}

// Run disconnects clients whose send buffer overflowed until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	l := pkglog.L()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.slow:
			l.Warn().Str(pkglog.FieldConnID, client.ID).Msg("send buffer full, dropping client")
			if client.Conn != nil {
				// ReadPump sees the closed connection and runs the normal disconnect path.
				client.Conn.Close()
			} else {
				h.Unregister(client)
			}
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, client.ID).Msg("client registered")
}

// Unregister removes a client from the hub and every room it is in.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if ok && current == client {
		for _, roomID := range h.joined[client.ID] {
			h.leaveLocked(client.ID, roomID)
		}
		delete(h.joined, client.ID)
		delete(h.clients, client.ID)
		client.closeSend()
	}
	h.mu.Unlock()

	if ok {
		l := pkglog.L()
		l.Info().Str(pkglog.FieldConnID, client.ID).Msg("client unregistered")
	}
}

// JoinRoom adds a client to a room and returns the members that were already
// there, in join order. Both frames are queued under the registry lock: greet,
// if non-nil, to the joiner, and announce, if non-nil, to exactly those prior
// members. A later joiner therefore never sees this join announced. Joining
// twice is a no-op that still reports the other members.
func (h *Hub) JoinRoom(clientID, roomID string, greet GreetFunc, announce interface{}) ([]string, error) {
	var announceData []byte
	if announce != nil {
		data, err := json.Marshal(announce)
		if err != nil {
			return nil, err
		}
		announceData = data
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{members: make(map[string]*Client)}
		h.rooms[roomID] = r
	}

	existing := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if id != clientID {
			existing = append(existing, id)
		}
	}

	if _, member := r.members[clientID]; !member {
		r.members[clientID] = client
		r.order = append(r.order, clientID)
		h.joined[clientID] = append(h.joined[clientID], roomID)
	}

	if greet != nil {
		data, err := json.Marshal(greet(existing))
		if err != nil {
			return existing, err
		}
		h.deliverLocked(client, data)
	}
	if announceData != nil {
		for _, id := range existing {
			h.deliverLocked(r.members[id], announceData)
		}
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, clientID).Str(pkglog.FieldRoomID, roomID).Int("existing", len(existing)).Msg("client joined room")
	return existing, nil
}

// LeaveRoom removes a client from a room. It reports whether the client was a member.
func (h *Hub) LeaveRoom(clientID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.leaveLocked(clientID, roomID) {
		return false
	}

	rooms := h.joined[clientID]
	for i, id := range rooms {
		if id == roomID {
			h.joined[clientID] = append(rooms[:i], rooms[i+1:]...)
			break
		}
	}
	if len(h.joined[clientID]) == 0 {
		delete(h.joined, clientID)
	}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldConnID, clientID).Str(pkglog.FieldRoomID, roomID).Msg("client left room")
	return true
}

func (h *Hub) leaveLocked(clientID, roomID string) bool {
	r, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	removed := r.remove(clientID)
	if len(r.members) == 0 {
		delete(h.rooms, roomID)
	}
	return removed
}

// RoomsOf returns the rooms a client has joined, in join order.
func (h *Hub) RoomsOf(clientID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := h.joined[clientID]
	out := make([]string, len(rooms))
	copy(out, rooms)
	return out
}

// MembersOf returns the room's members in join order, without exclude.
func (h *Hub) MembersOf(roomID, exclude string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

// HasClient reports whether the connection is attached to this hub.
func (h *Hub) HasClient(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// BroadcastToRoom sends a message to all clients in a room except exclude.
func (h *Hub) BroadcastToRoom(roomID string, message interface{}, exclude string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.BroadcastRaw(roomID, data, exclude)
	return nil
}

// BroadcastRaw sends an encoded frame to the local members of a room.
func (h *Hub) BroadcastRaw(roomID string, data []byte, exclude string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	for _, id := range r.order {
		if id == exclude {
			continue
		}
		h.deliverLocked(r.members[id], data)
	}
}

// SendToClient sends a message to a specific client. An unknown id is ignored.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.SendRaw(clientID, data)
	return nil
}

// SendRaw sends an encoded frame to one client and reports whether it is local.
func (h *Hub) SendRaw(clientID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return false
	}
	h.deliverLocked(client, data)
	return true
}

// deliverLocked must be called with h.mu held; Send is only closed under the write lock.
func (h *Hub) deliverLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		select {
		case h.slow <- client:
		default:
		}
	}
}

// Snapshot returns every room with its local members in join order.
func (h *Hub) Snapshot() map[string][]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string][]string, len(h.rooms))
	for roomID, r := range h.rooms {
		members := make([]string, len(r.order))
		copy(members, r.order)
		out[roomID] = members
	}
	return out
}
