package domain

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidMessage = errors.New("content, sender and room are required")

// ChatMessage is a chat line as cached, persisted and sent in history.
// ID stays empty until the store has accepted the message.
type ChatMessage struct {
	ID        string    `json:"id,omitempty"`
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Room      string    `json:"room"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewChatMessage stamps the message once; the same CreatedAt goes to the store,
// the cache and the stream.
func NewChatMessage(content, room, sender string, now time.Time) (*ChatMessage, error) {
	m := &ChatMessage{
		Content:   content,
		Sender:    sender,
		Room:      room,
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ChatMessage) Validate() error {
	if strings.TrimSpace(m.Content) == "" || m.Sender == "" || m.Room == "" {
		return ErrInvalidMessage
	}
	return nil
}

// MessageModel is the relational row for a ChatMessage.
type MessageModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)"`
	Content   string    `gorm:"type:text;not null"`
	SenderID  string    `gorm:"type:varchar(255);not null"`
	Room      string    `gorm:"type:varchar(255);not null;index:idx_messages_room_created,priority:1"`
	CreatedAt time.Time `gorm:"not null;index:idx_messages_room_created,priority:2"`
}

func (MessageModel) TableName() string {
	return "messages"
}

func (m *MessageModel) ToDomain() ChatMessage {
	return ChatMessage{
		ID:        m.ID,
		Content:   m.Content,
		Sender:    m.SenderID,
		Room:      m.Room,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func MessageModelFromDomain(m *ChatMessage) *MessageModel {
	return &MessageModel{
		ID:        m.ID,
		Content:   m.Content,
		SenderID:  m.Sender,
		Room:      m.Room,
		CreatedAt: m.CreatedAt,
	}
}
