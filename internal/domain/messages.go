package domain

import "encoding/json"

// WebSocket message types from client.
const (
	MsgTypeJoinRoom            = "join-room"
	MsgTypeLeaveRoom           = "leave-room"
	MsgTypeAnnounceName        = "announce-name"
	MsgTypeSendingOffer        = "sending-offer"
	MsgTypeSendingAnswer       = "sending-answer"
	MsgTypeSendingICECandidate = "sending-ice-candidate"
	MsgTypeSendChatMessage     = "send-chat-message"
	MsgTypePing                = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeConnected                = "connected"
	MsgTypeExistingUsers            = "get-existing-users"
	MsgTypeUserJoined               = "user-joined"
	MsgTypeUserLeft                 = "user-left"
	MsgTypeReceivingOffer           = "receiving-offer"
	MsgTypeReceivingAnswer          = "receiving-answer"
	MsgTypeReceivingICECandidate    = "receiving-ice-candidate"
	MsgTypeParticipantAnnouncedName = "participant-announced-name"
	MsgTypeReceiveChatMessage       = "receive-chat-message"
	MsgTypeMessageHistory           = "message-history"
	MsgTypeError                    = "error"
	MsgTypePong                     = "pong"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

// RoomMessage is sent by client to join or leave a room.
type RoomMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// AnnounceNameMessage carries a display name for the room's other members.
type AnnounceNameMessage struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	RoomID string `json:"room_id"`
}

// OfferMessage is an SDP offer addressed to one connection.
type OfferMessage struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer"`
	To    string          `json:"to"`
}

// AnswerMessage is an SDP answer addressed to one connection.
type AnswerMessage struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
	To     string          `json:"to"`
}

// ICECandidateMessage is sent when an ICE candidate is available.
type ICECandidateMessage struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
	To        string          `json:"to"`
}

// SendChatMessage is a chat line posted to a room.
type SendChatMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
}

// Server -> Client messages

type ConnectedMessage struct {
	Type   string `json:"type"`
	ConnID string `json:"conn_id"`
}

// ExistingUsersMessage lists the members that were in the room before the joiner.
type ExistingUsersMessage struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// PeerMessage is used for user-joined and user-left.
type PeerMessage struct {
	Type   string `json:"type"`
	ConnID string `json:"conn_id"`
}

type ReceivingOfferMessage struct {
	Type  string          `json:"type"`
	Offer json.RawMessage `json:"offer"`
	From  string          `json:"from"`
}

type ReceivingAnswerMessage struct {
	Type   string          `json:"type"`
	Answer json.RawMessage `json:"answer"`
	From   string          `json:"from"`
}

type ReceivingICECandidateMessage struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type AnnouncedNameMessage struct {
	Type   string `json:"type"`
	ConnID string `json:"conn_id"`
	Name   string `json:"name"`
}

// ReceiveChatMessage is the live fan-out of a chat line. Timestamp is unix milliseconds.
type ReceiveChatMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SenderID  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
}

// MessageHistoryMessage is sent to a joiner, oldest message first.
type MessageHistoryMessage struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

// ErrorMessage is sent when a frame cannot be handled.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
