package stream

import (
	"context"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
)

// Publisher appends a message_sent event for downstream consumers.
type Publisher interface {
	PublishMessageSent(ctx context.Context, msg *domain.ChatMessage) error
	Close() error
}

// NopPublisher drops every event; used when stream.driver is "none".
type NopPublisher struct{}

func (NopPublisher) PublishMessageSent(context.Context, *domain.ChatMessage) error { return nil }

func (NopPublisher) Close() error { return nil }
