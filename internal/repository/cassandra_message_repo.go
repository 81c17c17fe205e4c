package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/config"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/gocql/gocql"
)

const createMessagesByRoom = `CREATE TABLE IF NOT EXISTS messages_by_room (
	room text,
	created_at timestamp,
	id text,
	content text,
	sender_id text,
	PRIMARY KEY ((room), created_at, id)
) WITH CLUSTERING ORDER BY (created_at DESC, id DESC)`

type CassandraMessageRepository struct {
	session *gocql.Session
}

func NewCassandraMessageRepository(cfg config.CassandraConfig) (*CassandraMessageRepository, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout

	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	if err := session.Query(createMessagesByRoom).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create messages_by_room: %w", err)
	}

	return &CassandraMessageRepository{session: session}, nil
}

func (r *CassandraMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	id := newMessageID(msg.CreatedAt)
	err := r.session.Query(
		`INSERT INTO messages_by_room (room, created_at, id, content, sender_id) VALUES (?, ?, ?, ?, ?)`,
		msg.Room, msg.CreatedAt, id, msg.Content, msg.Sender,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	msg.ID = id
	return nil
}

func (r *CassandraMessageRepository) ListRecent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit < 1 {
		limit = 50
	}

	iter := r.session.Query(
		`SELECT id, content, sender_id, room, created_at FROM messages_by_room WHERE room = ? LIMIT ?`,
		roomID, limit,
	).WithContext(ctx).Iter()

	var messages []domain.ChatMessage
	var msg domain.ChatMessage
	for iter.Scan(&msg.ID, &msg.Content, &msg.Sender, &msg.Room, &msg.CreatedAt) {
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
		msg = domain.ChatMessage{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// clustering order is newest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}

func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}

// parseConsistency converts a string consistency level to gocql.Consistency.
func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "EACH_QUORUM":
		return gocql.EachQuorum
	default:
		return gocql.LocalQuorum
	}
}
