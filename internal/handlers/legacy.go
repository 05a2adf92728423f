package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat-service/internal/chat"
	"room-chat-service/internal/observability"
	"room-chat-service/internal/repositories"
)

// legacyTimeFormat matches the locale-style timestamps of the prior API
// generation.
const legacyTimeFormat = "1/2/2006, 3:04:05 PM"

// LegacyHandler serves the unauthenticated endpoints preserved from the prior
// API generation. Their response shapes are a compatibility contract: plain
// JSON strings, never structured objects. Do not "improve" them.
type LegacyHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	ingestor *chat.Ingestor
}

// NewLegacyHandler builds a LegacyHandler.
func NewLegacyHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, ingestor *chat.Ingestor) *LegacyHandler {
	return &LegacyHandler{rooms: rooms, messages: messages, ingestor: ingestor}
}

// GetMessages returns the default room's history as formatted strings, in
// ascending creation order. An absent default room yields an empty array.
func (h *LegacyHandler) GetMessages(c *gin.Context) {
	room, err := h.rooms.GetRoomByName(c.Request.Context(), chat.DefaultRoomName)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			c.JSON(http.StatusOK, []string{})
			return
		}
		c.JSON(http.StatusInternalServerError, "internal server error")
		return
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, "internal server error")
		return
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, fmt.Sprintf("Received message at %s from %s: %s", msg.CreatedAt.Format(legacyTimeFormat), msg.SenderNick, msg.Body))
	}
	c.JSON(http.StatusOK, lines)
}

// PostMessage ingests a message into the default room, attributed to the
// Anonymous sender. The error strings below are part of the legacy contract.
func (h *LegacyHandler) PostMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, "failed to decode")
		return
	}

	if _, err := h.ingestor.IngestLegacy(c.Request.Context(), req.Message); err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, "failed to decode")
		case errors.Is(err, chat.ErrRoomNotFound):
			c.JSON(http.StatusInternalServerError, "Room not found")
		default:
			c.JSON(http.StatusInternalServerError, "internal server error")
		}
		return
	}

	observability.IncMessageIngested("legacy")
	c.Status(http.StatusOK)
}
