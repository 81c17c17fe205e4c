package handler

import (
	"net/http"
	"strconv"

	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/internal/service"
	"github.com/NEXUS-AI-Innovation-lab-for-Health/NexusCare/pkg/response"
	"github.com/gin-gonic/gin"
)

const defaultLimit = 50

// Stats reports live connection counts for the health check.
type Stats interface {
	ClientCount() int
	RoomCount() int
}

type HTTPHandler struct {
	chat  service.ChatService
	ws    *WSHandler
	stats Stats
}

func NewHTTPHandler(chat service.ChatService, ws *WSHandler, stats Stats) *HTTPHandler {
	return &HTTPHandler{
		chat:  chat,
		ws:    ws,
		stats: stats,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", gin.WrapF(h.ws.HandleWebSocket))
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/v1")
	{
		api.GET("/messages/room/:room_id", h.GetRoomMessages)
	}
}

// GetRoomMessages returns the room's recent messages, oldest first. History is
// bounded by cache.max_messages, so limit only narrows it.
func (h *HTTPHandler) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")

	limit := defaultLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	messages := h.chat.GetHistory(c.Request.Context(), roomID)
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	response.Success(c, messages)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.stats != nil {
		body["connections"] = h.stats.ClientCount()
		body["rooms"] = h.stats.RoomCount()
	}
	c.JSON(http.StatusOK, body)
}
