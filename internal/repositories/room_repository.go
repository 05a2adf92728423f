package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"room-chat-service/internal/models"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// RoomRepository abstracts room persistence. Participant rows are the durable
// access membership; they are independent of which sockets are currently
// subscribed to the room's live events.
type RoomRepository interface {
	CreateRoom(ctx context.Context, name, description string, createdBy int) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	GetRoomByName(ctx context.Context, name string) (models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	EnsureRoom(ctx context.Context, name, description string, createdBy int) (models.Room, error)
	AddParticipant(ctx context.Context, roomID, userID int) error
	RemoveParticipant(ctx context.Context, roomID, userID int) error
	IsParticipant(ctx context.Context, roomID, userID int) (bool, error)
	Participants(ctx context.Context, roomID int) ([]models.UserSummary, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom stores a room and registers the creator as first participant.
func (r *RoomRepo) CreateRoom(ctx context.Context, name, description string, createdBy int) (models.Room, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx, `INSERT INTO rooms (name, description, created_by) VALUES ($1, $2, $3) RETURNING id, name, description, created_by, created_at`, name, description, createdBy).
		StructScan(&room); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			err = ErrRoomExists
		}
		return models.Room{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2)`, room.ID, createdBy); err != nil {
		return models.Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// GetRoom fetches a single room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, name, description, created_by, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// GetRoomByName fetches a single room by its unique name.
func (r *RoomRepo) GetRoomByName(ctx context.Context, name string) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, name, description, created_by, created_at FROM rooms WHERE name=$1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// ListRooms returns all rooms, newest first.
func (r *RoomRepo) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms, `SELECT id, name, description, created_by, created_at FROM rooms ORDER BY created_at DESC`)
	return rooms, err
}

// EnsureRoom returns the room with the given name, creating it (with the
// caller as creator and first participant) when it does not exist yet.
func (r *RoomRepo) EnsureRoom(ctx context.Context, name, description string, createdBy int) (models.Room, error) {
	room, err := r.GetRoomByName(ctx, name)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return models.Room{}, err
	}

	room, err = r.CreateRoom(ctx, name, description, createdBy)
	if errors.Is(err, ErrRoomExists) {
		// lost the race to a concurrent create
		return r.GetRoomByName(ctx, name)
	}
	return room, err
}

// AddParticipant adds a user to the persisted participant set. Idempotent.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO room_participants (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, roomID, userID)
	return err
}

// RemoveParticipant removes a user from the persisted participant set.
func (r *RoomRepo) RemoveParticipant(ctx context.Context, roomID, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	return err
}

// IsParticipant checks durable membership.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// Participants returns the persisted participants of a room.
func (r *RoomRepo) Participants(ctx context.Context, roomID int) ([]models.UserSummary, error) {
	var users []models.UserSummary
	err := r.db.SelectContext(ctx, &users, `SELECT u.id, u.username, u.is_online FROM users u INNER JOIN room_participants rp ON rp.user_id = u.id WHERE rp.room_id=$1 ORDER BY u.username ASC`, roomID)
	return users, err
}
