package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/audit"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/hub"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
)

type signalService struct {
	hub  RoomHub
	chat ChatService
}

// NewSignalService creates a new SignalService instance.
func NewSignalService(h RoomHub, chat ChatService) SignalService {
	return &signalService{
		hub:  h,
		chat: chat,
	}
}

func (s *signalService) HandleJoinRoom(ctx context.Context, c *hub.Client, roomID string) error {
	// The member list and the announcement are queued inside the registry
	// update, before any I/O.
	_, err := s.hub.JoinRoom(c.ID, roomID, func(existing []string) interface{} {
		return &domain.ExistingUsersMessage{
			Type:  domain.MsgTypeExistingUsers,
			Users: existing,
		}
	}, &domain.PeerMessage{
		Type:   domain.MsgTypeUserJoined,
		ConnID: c.ID,
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.ActionJoinRoom, c.ID, roomID, "client joined room")

	history := s.chat.GetHistory(ctx, roomID)
	return s.hub.SendToClient(c.ID, &domain.MessageHistoryMessage{
		Type:     domain.MsgTypeMessageHistory,
		Messages: history,
	})
}

func (s *signalService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	if !s.hub.LeaveRoom(c.ID, roomID) {
		return nil
	}

	audit.Log(ctx, audit.ActionLeaveRoom, c.ID, roomID, "client left room")
	return s.hub.BroadcastToRoom(roomID, &domain.PeerMessage{
		Type:   domain.MsgTypeUserLeft,
		ConnID: c.ID,
	}, c.ID)
}

func (s *signalService) HandleOffer(ctx context.Context, c *hub.Client, to string, offer json.RawMessage) error {
	s.logRelay(ctx, domain.MsgTypeSendingOffer, to)
	return s.hub.SendToClient(to, &domain.ReceivingOfferMessage{
		Type:  domain.MsgTypeReceivingOffer,
		Offer: offer,
		From:  c.ID,
	})
}

func (s *signalService) HandleAnswer(ctx context.Context, c *hub.Client, to string, answer json.RawMessage) error {
	s.logRelay(ctx, domain.MsgTypeSendingAnswer, to)
	return s.hub.SendToClient(to, &domain.ReceivingAnswerMessage{
		Type:   domain.MsgTypeReceivingAnswer,
		Answer: answer,
		From:   c.ID,
	})
}

func (s *signalService) HandleICECandidate(ctx context.Context, c *hub.Client, to string, candidate json.RawMessage) error {
	s.logRelay(ctx, domain.MsgTypeSendingICECandidate, to)
	return s.hub.SendToClient(to, &domain.ReceivingICECandidateMessage{
		Type:      domain.MsgTypeReceivingICECandidate,
		Candidate: candidate,
		From:      c.ID,
	})
}

func (s *signalService) logRelay(ctx context.Context, event, to string) {
	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldEvent, event).Str(log.FieldTargetID, to).Msg("relaying signal")
}

func (s *signalService) HandleAnnounceName(ctx context.Context, c *hub.Client, roomID, name string) error {
	c.Session.SetName(name)
	return s.hub.BroadcastToRoom(roomID, &domain.AnnouncedNameMessage{
		Type:   domain.MsgTypeParticipantAnnouncedName,
		ConnID: c.ID,
		Name:   name,
	}, c.ID)
}

func (s *signalService) HandleChatMessage(ctx context.Context, c *hub.Client, roomID, content, senderID string) error {
	if senderID == "" {
		senderID = c.Session.DisplayName()
	}
	return s.chat.SendMessage(ctx, c.ID, content, roomID, senderID)
}

func (s *signalService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	rooms := s.hub.RoomsOf(c.ID)
	for _, roomID := range rooms {
		err := s.hub.BroadcastToRoom(roomID, &domain.PeerMessage{
			Type:   domain.MsgTypeUserLeft,
			ConnID: c.ID,
		}, c.ID)
		if err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to announce departure")
		}
		s.hub.LeaveRoom(c.ID, roomID)
	}

	audit.LogWithDetail(ctx, audit.ActionDisconnect, c.ID, "", strings.Join(rooms, ","), "client disconnected")
	return nil
}
