package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewChatMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.FixedZone("CET", 3600))

	m, err := NewChatMessage("hello", "demo", "alice", now)
	if err != nil {
		t.Fatalf("NewChatMessage: %v", err)
	}
	if m.ID != "" {
		t.Errorf("id should be empty before persist, got %q", m.ID)
	}
	if m.CreatedAt.Location() != time.UTC {
		t.Errorf("createdAt should be UTC, got %v", m.CreatedAt.Location())
	}
	if m.CreatedAt.Nanosecond() != 123000000 {
		t.Errorf("createdAt should be truncated to ms, got %d ns", m.CreatedAt.Nanosecond())
	}
}

func TestNewChatMessageValidation(t *testing.T) {
	tests := []struct {
		name, content, room, sender string
	}{
		{"empty content", "", "demo", "alice"},
		{"blank content", "   ", "demo", "alice"},
		{"empty room", "hi", "", "alice"},
		{"empty sender", "hi", "demo", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChatMessage(tt.content, tt.room, tt.sender, time.Now())
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("err = %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestMessageModelRoundTrip(t *testing.T) {
	in := ChatMessage{ID: "01HX", Content: "hi", Sender: "bob", Room: "demo", CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	out := MessageModelFromDomain(&in).ToDomain()
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}
