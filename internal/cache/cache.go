package cache

import (
	"context"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
)

// MessageCache keeps a bounded list of the latest messages per room.
type MessageCache interface {
	// Append pushes one message, trims the list to the bound and refreshes the TTL.
	Append(ctx context.Context, msg *domain.ChatMessage) error

	// Recent returns the cached messages oldest first, or ErrCacheMiss.
	Recent(ctx context.Context, roomID string) ([]domain.ChatMessage, error)

	// Backfill seeds an empty room list from the store.
	Backfill(ctx context.Context, roomID string, msgs []domain.ChatMessage) error

	BuildKey(roomID string) string
	Close() error
}
