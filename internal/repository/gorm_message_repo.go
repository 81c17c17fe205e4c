package repository

import (
	"context"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/database"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"gorm.io/gorm"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a GORM-backed repository and migrates the messages table.
func NewGormMessageRepository(db *gorm.DB) (*GormMessageRepository, error) {
	if err := database.AutoMigrate(db, &domain.MessageModel{}); err != nil {
		return nil, err
	}
	return &GormMessageRepository{db: db}, nil
}

func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	if err := msg.Validate(); err != nil {
		return err
	}

	model := domain.MessageModelFromDomain(msg)
	model.ID = newMessageID(msg.CreatedAt)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, msg.Room).Msg("failed to insert message")
		return err
	}

	msg.ID = model.ID
	l.Debug().Str("message_id", msg.ID).Str(log.FieldRoomID, msg.Room).Msg("message stored")
	return nil
}

func (r *GormMessageRepository) ListRecent(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	if limit < 1 {
		limit = 50
	}

	var models []domain.MessageModel
	err := r.db.WithContext(ctx).
		Where("room = ?", roomID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		return nil, err
	}

	// newest-first from the query, callers want oldest first
	messages := make([]domain.ChatMessage, len(models))
	for i := range models {
		messages[len(models)-1-i] = models[i].ToDomain()
	}
	return messages, nil
}

func (r *GormMessageRepository) Close() error {
	return database.Close(r.db)
}
