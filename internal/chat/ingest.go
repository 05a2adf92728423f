package chat

import (
	"context"
	"errors"
	"strings"

	"room-chat-service/internal/models"
	"room-chat-service/internal/repositories"
)

// DefaultRoomName is the well-known room used by the legacy HTTP endpoints
// and joined by every user at registration.
const DefaultRoomName = "chat-room"

// AnonymousNick is the synthetic sender nickname used by the legacy path.
const AnonymousNick = "Anonymous"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrRoomNotFound = errors.New("room not found")
)

// Broadcaster delivers a persisted message to every connection currently
// subscribed to its room, including the sender's own connection.
type Broadcaster interface {
	BroadcastMessage(msg models.Message)
}

// Sender identifies who a message is attributed to.
type Sender struct {
	ID   int
	Nick string
}

// Ingestor is the single entry point for new messages. The live socket path,
// the authenticated REST path, the upload path and the legacy HTTP path all
// converge here, so every consumer observes one wire shape: persist first,
// then broadcast exactly once.
type Ingestor struct {
	rooms       repositories.RoomRepository
	messages    repositories.MessageRepository
	broadcaster Broadcaster
}

// NewIngestor constructs an Ingestor.
func NewIngestor(rooms repositories.RoomRepository, messages repositories.MessageRepository, broadcaster Broadcaster) *Ingestor {
	return &Ingestor{rooms: rooms, messages: messages, broadcaster: broadcaster}
}

// IngestText persists and broadcasts a plain text message.
func (i *Ingestor) IngestText(ctx context.Context, roomID int, sender Sender, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}

	return i.store(ctx, models.Message{
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderNick: sender.Nick,
		Body:       body,
		Type:       models.MessageTypeText,
	})
}

// IngestFile persists and broadcasts a message carrying an attachment. The
// body may be empty; it defaults to the attachment's original name.
func (i *Ingestor) IngestFile(ctx context.Context, roomID int, sender Sender, caption string, file models.FileMeta) (models.Message, error) {
	body := strings.TrimSpace(caption)
	if body == "" {
		body = file.OriginalName
	}

	messageType := models.MessageTypeFile
	if strings.HasPrefix(file.Mimetype, "image/") {
		messageType = models.MessageTypeImage
	}

	return i.store(ctx, models.Message{
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderNick: sender.Nick,
		Body:       body,
		Type:       messageType,
		File:       &file,
	})
}

// IngestLegacy persists and broadcasts a message submitted through the
// unauthenticated legacy endpoint. The message lands in the default room,
// attributed to the room's creator under the Anonymous nickname. The room is
// never created here; its absence is a distinguishable failure.
func (i *Ingestor) IngestLegacy(ctx context.Context, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyMessage
	}

	room, err := i.rooms.GetRoomByName(ctx, DefaultRoomName)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return models.Message{}, ErrRoomNotFound
		}
		return models.Message{}, err
	}

	return i.store(ctx, models.Message{
		RoomID:     room.ID,
		SenderID:   room.CreatedBy,
		SenderNick: AnonymousNick,
		Body:       body,
		Type:       models.MessageTypeText,
	})
}

func (i *Ingestor) store(ctx context.Context, msg models.Message) (models.Message, error) {
	persisted, err := i.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}

	i.broadcaster.BroadcastMessage(persisted)
	return persisted, nil
}
