package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"room-chat-service/internal/models"
	"room-chat-service/internal/repositories"
)

// RoomHandler manages the room REST endpoints. All operations here act on the
// persisted participant set; live transport subscriptions are managed by the
// websocket layer.
type RoomHandler struct {
	rooms repositories.RoomRepository
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

type roomResponse struct {
	models.Room
	Participants []models.UserSummary `json:"participants"`
}

// CreateRoom creates a room with the caller as first participant.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required,min=2,max=50"`
		Description string `json:"description" binding:"max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	room, err := h.rooms.CreateRoom(c.Request.Context(), req.Name, req.Description, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "room with this name already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// ListRooms returns all rooms with their persisted participants.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	responses := make([]roomResponse, 0, len(rooms))
	for _, room := range rooms {
		participants, err := h.rooms.Participants(c.Request.Context(), room.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
			return
		}
		responses = append(responses, roomResponse{Room: room, Participants: participants})
	}

	c.JSON(http.StatusOK, gin.H{"rooms": responses})
}

// GetRoom returns a single room with its participants.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := h.roomFromParam(c)
	if !ok {
		return
	}

	participants, err := h.rooms.Participants(c.Request.Context(), room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": roomResponse{Room: room, Participants: participants}})
}

// JoinRoom adds the caller to the persisted participant set. Idempotent.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	room, ok := h.roomFromParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.rooms.AddParticipant(c.Request.Context(), room.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not join room"})
		return
	}

	participants, err := h.rooms.Participants(c.Request.Context(), room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": roomResponse{Room: room, Participants: participants}})
}

// LeaveRoom removes the caller from the persisted participant set. This does
// not touch live transport subscriptions; an open socket keeps receiving the
// room's events until it leaves or disconnects.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	room, ok := h.roomFromParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.rooms.RemoveParticipant(c.Request.Context(), room.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not leave room"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) roomFromParam(c *gin.Context) (models.Room, bool) {
	roomID, err := strconv.Atoi(c.Param("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return models.Room{}, false
	}

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "room not found"})
		return models.Room{}, false
	}
	return room, true
}
