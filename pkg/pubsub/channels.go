package pubsub

import (
	"encoding/json"
	"fmt"
)

// Channel naming conventions for relay instances sharing one bus.
const (
	// ChannelMembership carries join/leave events of every instance.
	ChannelMembership = "relay:cluster:membership"

	// ChannelBroadcast carries room broadcasts of every instance.
	ChannelBroadcast = "relay:cluster:broadcast"

	// ChannelInstanceDirect carries messages addressed to one connection
	// owned by the instance in the middle segment.
	ChannelInstanceDirect = "relay:instance:%s:direct"
)

// Event types carried on the cluster channels.
const (
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventRoomBroadcast = "room_broadcast"
	EventDirectMessage = "direct_message"

	// EventMembershipSync asks every peer to republish its local members.
	EventMembershipSync = "membership_sync"
)

// InstanceDirectChannel returns the direct channel of a relay instance.
func InstanceDirectChannel(instanceID string) string {
	return fmt.Sprintf(ChannelInstanceDirect, instanceID)
}

// MembershipPayload describes a connection joining or leaving a room.
type MembershipPayload struct {
	ConnID string `json:"conn_id"`
}

// BroadcastPayload is a pre-encoded frame for every member of RoomID
// except Exclude.
type BroadcastPayload struct {
	Exclude string          `json:"exclude,omitempty"`
	Frame   json.RawMessage `json:"frame"`
}

// DirectPayload is a pre-encoded frame for a single connection.
type DirectPayload struct {
	ConnID string          `json:"conn_id"`
	Frame  json.RawMessage `json:"frame"`
}
