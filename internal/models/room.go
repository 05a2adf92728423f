package models

import "time"

// Room is a named chat room. The participant rows in room_participants are
// the persisted membership; which sockets currently receive the room's live
// events is tracked separately by the websocket hub.
type Room struct {
	ID          int       `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   int       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
