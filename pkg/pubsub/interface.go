package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrMissingType = errors.New("pubsub: event has no type")

// Event is one message on the bus. Origin names the publishing instance so
// subscribers can drop their own echoes.
type Event struct {
	Type      string          `json:"type"`
	Origin    string          `json:"origin"`
	RoomID    string          `json:"room_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(eventType, origin, roomID string, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Origin:    origin,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Encode returns the wire form shared by every driver.
func (e *Event) Encode() ([]byte, error) {
	if e.Type == "" {
		return nil, ErrMissingType
	}
	return json.Marshal(e)
}

// DecodeEvent parses the wire form. Events without a type are rejected.
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if e.Type == "" {
		return nil, ErrMissingType
	}
	return &e, nil
}

func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// PubSub is a fire-and-forget bus. Delivery is at most once and ordered per
// channel; a subscriber sees only events published after Subscribe returns.
// The channel returned by Subscribe is closed on Unsubscribe or Close.
type PubSub interface {
	Publish(ctx context.Context, channel string, event *Event) error
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
	Close() error
}
