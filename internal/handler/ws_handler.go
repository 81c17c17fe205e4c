package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/audit"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/domain"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/hub"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/service"
	pkglog "github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // browsers connect from the web client's own origin
	},
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub     *hub.Hub
	service service.SignalService
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.SignalService) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
	}
}

// HandleWebSocket handles WebSocket upgrade and message routing.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, h.hub, conn)

	// The request context ends with the upgrade; the connection keeps the request's logger.
	ctx := pkglog.WithConn(pkglog.WithLogger(context.Background(), l), clientID)

	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.HandleDisconnect(ctx, c); err != nil {
			cl := pkglog.Ctx(ctx)
			cl.Error().Err(err).Msg("disconnect handler error")
		}
	})

	h.hub.Register(client)
	audit.Log(ctx, audit.ActionConnect, clientID, "", "client connected")

	client.SendMessage(&domain.ConnectedMessage{
		Type:   domain.MsgTypeConnected,
		ConnID: clientID,
	})

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := pkglog.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid join-room message"))
			return
		}
		if err := h.service.HandleJoinRoom(ctx, client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("join room failed")
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid leave-room message"))
			return
		}
		if err := h.service.HandleLeaveRoom(ctx, client, msg.RoomID); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("leave room failed")
		}

	case domain.MsgTypeSendingOffer:
		var msg domain.OfferMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid sending-offer message"))
			return
		}
		if err := h.service.HandleOffer(ctx, client, msg.To, msg.Offer); err != nil {
			l.Error().Err(err).Str(pkglog.FieldTargetID, msg.To).Msg("offer relay failed")
		}

	case domain.MsgTypeSendingAnswer:
		var msg domain.AnswerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid sending-answer message"))
			return
		}
		if err := h.service.HandleAnswer(ctx, client, msg.To, msg.Answer); err != nil {
			l.Error().Err(err).Str(pkglog.FieldTargetID, msg.To).Msg("answer relay failed")
		}

	case domain.MsgTypeSendingICECandidate:
		var msg domain.ICECandidateMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid sending-ice-candidate message"))
			return
		}
		if err := h.service.HandleICECandidate(ctx, client, msg.To, msg.Candidate); err != nil {
			l.Error().Err(err).Str(pkglog.FieldTargetID, msg.To).Msg("ice candidate relay failed")
		}

	case domain.MsgTypeAnnounceName:
		var msg domain.AnnounceNameMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid announce-name message"))
			return
		}
		if err := h.service.HandleAnnounceName(ctx, client, msg.RoomID, msg.Name); err != nil {
			l.Error().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("announce name failed")
		}

	case domain.MsgTypeSendChatMessage:
		var msg domain.SendChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid send-chat-message message"))
			return
		}
		// Invalid chat input is logged by the orchestrator and dropped without a reply.
		h.service.HandleChatMessage(ctx, client, msg.RoomID, msg.Content, msg.SenderID)

	case domain.MsgTypePing:
		client.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Unknown message type"))
	}
}
