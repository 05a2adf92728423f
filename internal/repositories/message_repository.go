package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"room-chat-service/internal/models"
)

// MessageRepository abstracts message persistence. Messages are immutable
// once created.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// messageRow maps the messages table including the nullable file columns.
type messageRow struct {
	ID               int            `db:"id"`
	RoomID           int            `db:"room_id"`
	SenderID         int            `db:"sender_id"`
	SenderNick       string         `db:"sender_nick"`
	Body             string         `db:"body"`
	Type             string         `db:"message_type"`
	FileName         sql.NullString `db:"file_name"`
	FileOriginalName sql.NullString `db:"file_original_name"`
	FileMimetype     sql.NullString `db:"file_mimetype"`
	FileSize         sql.NullInt64  `db:"file_size"`
	FilePath         sql.NullString `db:"file_path"`
	CreatedAt        sql.NullTime   `db:"created_at"`
}

func (row messageRow) toModel() models.Message {
	msg := models.Message{
		ID:         row.ID,
		RoomID:     row.RoomID,
		SenderID:   row.SenderID,
		SenderNick: row.SenderNick,
		Body:       row.Body,
		Type:       row.Type,
		CreatedAt:  row.CreatedAt.Time,
	}
	if row.FileName.Valid {
		msg.File = &models.FileMeta{
			Filename:     row.FileName.String,
			OriginalName: row.FileOriginalName.String,
			Mimetype:     row.FileMimetype.String,
			Size:         row.FileSize.Int64,
			Path:         row.FilePath.String,
		}
	}
	return msg
}

// CreateMessage stores a message and returns the persisted row.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var fileName, fileOriginalName, fileMimetype, filePath sql.NullString
	var fileSize sql.NullInt64
	if msg.File != nil {
		fileName = sql.NullString{String: msg.File.Filename, Valid: true}
		fileOriginalName = sql.NullString{String: msg.File.OriginalName, Valid: true}
		fileMimetype = sql.NullString{String: msg.File.Mimetype, Valid: true}
		fileSize = sql.NullInt64{Int64: msg.File.Size, Valid: true}
		filePath = sql.NullString{String: msg.File.Path, Valid: true}
	}

	var row messageRow
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_id, sender_id, sender_nick, body, message_type, file_name, file_original_name, file_mimetype, file_size, file_path)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, room_id, sender_id, sender_nick, body, message_type, file_name, file_original_name, file_mimetype, file_size, file_path, created_at`,
		msg.RoomID, msg.SenderID, msg.SenderNick, msg.Body, msg.Type, fileName, fileOriginalName, fileMimetype, fileSize, filePath).
		StructScan(&row)
	if err != nil {
		return models.Message{}, err
	}
	return row.toModel(), nil
}

// ListRoomMessages returns a room's messages in ascending creation order.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomID int) ([]models.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, room_id, sender_id, sender_nick, body, message_type, file_name, file_original_name, file_mimetype, file_size, file_path, created_at
        FROM messages WHERE room_id=$1 ORDER BY created_at ASC`, roomID)
	if err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toModel())
	}
	return msgs, nil
}
