package stream

import (
	"fmt"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// MessageSentEvent is the flat record appended for every chat message.
type MessageSentEvent struct {
	ID        string    `json:"-"`
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessageSentEvent(msg *domain.ChatMessage) MessageSentEvent {
	return MessageSentEvent{
		Content:   msg.Content,
		SenderID:  msg.Sender,
		RoomID:    msg.Room,
		Timestamp: msg.CreatedAt,
	}
}

// Values returns the field-value pairs stored in a stream entry.
func (e MessageSentEvent) Values() map[string]interface{} {
	return map[string]interface{}{
		"content":   e.Content,
		"senderId":  e.SenderID,
		"roomId":    e.RoomID,
		"timestamp": e.Timestamp.UTC().Format(TimestampLayout),
	}
}

func parseEntry(id string, values map[string]interface{}) (MessageSentEvent, error) {
	e := MessageSentEvent{ID: id}
	e.Content, _ = values["content"].(string)
	e.SenderID, _ = values["senderId"].(string)
	e.RoomID, _ = values["roomId"].(string)

	raw, _ := values["timestamp"].(string)
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return e, fmt.Errorf("entry %s: invalid timestamp %q: %w", id, raw, err)
	}
	e.Timestamp = ts.UTC()
	return e, nil
}
