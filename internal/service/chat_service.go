package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/audit"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/cache"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/repository"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/stream"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ChatOptions tunes the orchestrator.
type ChatOptions struct {
	HistoryLimit    int           // store read size on cache miss; matches the cache bound
	BackfillTimeout time.Duration // budget for the async cache backfill
	Now             func() time.Time
}

type chatService struct {
	hub       RoomHub
	repo      repository.MessageRepository
	cache     cache.MessageCache
	publisher stream.Publisher
	opts      ChatOptions
	sf        singleflight.Group
	wg        sync.WaitGroup

	seq    sync.Mutex // createdAt order matches queue order
	queues roomQueues
}

func NewChatService(
	h RoomHub,
	repo repository.MessageRepository,
	msgCache cache.MessageCache,
	publisher stream.Publisher,
	opts ChatOptions,
) ChatService {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.BackfillTimeout <= 0 {
		opts.BackfillTimeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = stream.NopPublisher{}
	}

	svc := &chatService{
		hub:       h,
		repo:      repo,
		cache:     msgCache,
		publisher: publisher,
		opts:      opts,
	}
	svc.queues.pending = make(map[string][]func())
	svc.queues.wg = &svc.wg
	return svc
}

func (s *chatService) SendMessage(ctx context.Context, connID, content, roomID, sender string) error {
	l := log.Ctx(ctx)

	s.seq.Lock()
	msg, err := domain.NewChatMessage(content, roomID, sender, s.opts.Now())
	if err != nil {
		s.seq.Unlock()
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("dropping invalid chat message")
		return err
	}

	// Writes outlive the sender's connection and never hold up its read loop.
	// They start once the live frame is out.
	bg := context.WithoutCancel(ctx)
	sent := make(chan struct{})
	s.queues.push(roomID, func() {
		<-sent
		s.settle(bg, connID, msg)
	})
	s.seq.Unlock()

	err = s.hub.BroadcastToRoom(roomID, &domain.ReceiveChatMessage{
		Type:      domain.MsgTypeReceiveChatMessage,
		Content:   msg.Content,
		SenderID:  msg.Sender,
		Timestamp: msg.CreatedAt.UnixMilli(),
	}, connID)
	close(sent)
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to broadcast chat message")
	}
	return nil
}

// settle runs the store, cache and stream writes concurrently. Each logs its own
// failure and returns nil, so all three always run.
func (s *chatService) settle(ctx context.Context, connID string, msg *domain.ChatMessage) {
	l := log.Ctx(ctx)

	var g errgroup.Group
	g.Go(func() error {
		stored := *msg
		if err := s.repo.Save(ctx, &stored); err != nil {
			l.Error().Err(err).Str(log.FieldRoomID, msg.Room).Msg("failed to persist chat message")
		}
		return nil
	})
	g.Go(func() error {
		if err := s.cache.Append(ctx, msg); err != nil {
			l.Warn().Err(err).Str(log.FieldRoomID, msg.Room).Msg("failed to cache chat message")
		}
		return nil
	})
	g.Go(func() error {
		if err := s.publisher.PublishMessageSent(ctx, msg); err != nil {
			l.Warn().Err(err).Str(log.FieldRoomID, msg.Room).Msg("failed to publish message_sent event")
		}
		return nil
	})
	_ = g.Wait()

	audit.Log(ctx, audit.ActionSendMessage, connID, msg.Room, "chat message sent")
}

func (s *chatService) GetHistory(ctx context.Context, roomID string) []domain.ChatMessage {
	l := log.Ctx(ctx)

	cached, err := s.cache.Recent(ctx, roomID)
	if err == nil {
		return cached
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("cache read error, falling back to store")
	}

	// Joiners of a cold room share one store read.
	result, err, _ := s.sf.Do(roomID, func() (interface{}, error) {
		messages, err := s.repo.ListRecent(context.WithoutCancel(ctx), roomID, s.opts.HistoryLimit)
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			s.backfill(roomID, messages)
		}
		return messages, nil
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to load history from store")
		return []domain.ChatMessage{}
	}

	messages, _ := result.([]domain.ChatMessage)
	if len(messages) == 0 {
		return []domain.ChatMessage{}
	}
	return messages
}

func (s *chatService) backfill(roomID string, messages []domain.ChatMessage) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.BackfillTimeout)
		defer cancel()
		if err := s.cache.Backfill(ctx, roomID, messages); err != nil {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("cache backfill error")
		}
	}()
}

// Wait blocks until queued writes and cache backfills finish.
func (s *chatService) Wait() {
	s.wg.Wait()
}

// roomQueues runs each room's writes one message at a time, in send order,
// with one worker per busy room. Rooms do not wait on each other.
type roomQueues struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      *sync.WaitGroup
}

func (q *roomQueues) push(roomID string, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, busy := q.pending[roomID]
	q.pending[roomID] = append(jobs, job)
	if busy {
		return
	}
	q.wg.Add(1)
	go q.work(roomID)
}

func (q *roomQueues) work(roomID string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		jobs := q.pending[roomID]
		if len(jobs) == 0 {
			delete(q.pending, roomID)
			q.mu.Unlock()
			return
		}
		job := jobs[0]
		q.pending[roomID] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}
