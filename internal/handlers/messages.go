package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"room-chat-service/internal/chat"
	"room-chat-service/internal/models"
	"room-chat-service/internal/observability"
	"room-chat-service/internal/repositories"
)

const maxUploadSize = 50 << 20 // 50MB

// allowedUploadTypes mirrors the attachment types the upload endpoint
// accepts: images, documents, audio, video and archives.
var allowedUploadTypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml",
	"application/pdf",
	"application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint", "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"text/plain", "text/csv",
	"application/zip", "application/x-rar-compressed", "application/gzip",
	"audio/mpeg", "audio/wav", "audio/ogg",
	"video/mp4", "video/webm", "video/ogg",
}

// MessageHandler manages message history, the authenticated HTTP send path
// and file uploads. Sends go through the same ingestion pipeline as the live
// socket path.
type MessageHandler struct {
	rooms     repositories.RoomRepository
	messages  repositories.MessageRepository
	users     repositories.UserRepository
	ingestor  *chat.Ingestor
	uploadDir string
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, users repositories.UserRepository, ingestor *chat.Ingestor, uploadDir string) *MessageHandler {
	return &MessageHandler{rooms: rooms, messages: messages, users: users, ingestor: ingestor, uploadDir: uploadDir}
}

// GetRoomMessages returns a room's history in ascending creation order.
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	room, ok := h.participantRoom(c)
	if !ok {
		return
	}

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), room.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostRoomMessage ingests a text message submitted over HTTP.
func (h *MessageHandler) PostRoomMessage(c *gin.Context) {
	room, ok := h.participantRoom(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message" binding:"required,max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender, ok := h.sender(c)
	if !ok {
		return
	}

	msg, err := h.ingestor.IngestText(c.Request.Context(), room.ID, sender, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageIngested("rest")
	c.JSON(http.StatusCreated, msg)
}

// UploadFile stores an attachment on disk and ingests a file message.
func (h *MessageHandler) UploadFile(c *gin.Context) {
	room, ok := h.participantRoom(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 50MB limit"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	mtype, err := mimetype.DetectReader(src)
	src.Close()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	if !uploadTypeAllowed(mtype) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file type " + mtype.String() + " is not allowed"})
		return
	}

	storedName := uuid.NewString() + filepath.Ext(fileHeader.Filename)
	if err := c.SaveUploadedFile(fileHeader, filepath.Join(h.uploadDir, storedName)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
		return
	}

	sender, ok := h.sender(c)
	if !ok {
		return
	}

	msg, err := h.ingestor.IngestFile(c.Request.Context(), room.ID, sender, c.PostForm("caption"), models.FileMeta{
		Filename:     storedName,
		OriginalName: fileHeader.Filename,
		Mimetype:     mtype.String(),
		Size:         fileHeader.Size,
		Path:         "/uploads/" + storedName,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageIngested("upload")
	c.JSON(http.StatusCreated, msg)
}

// participantRoom resolves the room_id parameter and checks the caller's
// persisted participation.
func (h *MessageHandler) participantRoom(c *gin.Context) (models.Room, bool) {
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

	userID := c.GetInt("userID")
	member, err := h.rooms.IsParticipant(c.Request.Context(), room.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return models.Room{}, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room participant"})
		return models.Room{}, false
	}
	return room, true
}

func (h *MessageHandler) sender(c *gin.Context) (chat.Sender, bool) {
	user, err := h.users.GetUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sender"})
		return chat.Sender{}, false
	}
	return chat.Sender{ID: user.ID, Nick: user.Username}, true
}

func uploadTypeAllowed(mtype *mimetype.MIME) bool {
	for _, allowed := range allowedUploadTypes {
		if mtype.Is(allowed) {
			return true
		}
	}
	return false
}
