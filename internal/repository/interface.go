package repository

import (
	"context"
	"strings"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
)

var ErrInvalidMessage = domain.ErrInvalidMessage

// MessageRepository is the durable store of chat messages.
type MessageRepository interface {
	// Save assigns msg.ID and persists the message with its existing CreatedAt.
	Save(ctx context.Context, msg *domain.ChatMessage) error

	// ListRecent returns the newest limit messages of a room, oldest first.
	ListRecent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)

	Close() error
}

// Driver names accepted by database.driver.
const (
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
	DriverCassandra = "cassandra"
)

func IsCassandra(driver string) bool {
	return strings.EqualFold(driver, DriverCassandra)
}
