package models

import "time"

// Message types.
const (
	MessageTypeText  = "text"
	MessageTypeFile  = "file"
	MessageTypeImage = "image"
)

// FileMeta describes an uploaded attachment.
type FileMeta struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Mimetype     string `json:"mimetype"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}

// Message is an immutable chat message. The JSON tags are the wire shape
// every consumer (websocket clients and the HTTP APIs) sees; SenderNick is a
// snapshot taken at creation so history stays readable if the user record
// changes later.
type Message struct {
	ID         int       `db:"id" json:"id"`
	RoomID     int       `db:"room_id" json:"room"`
	SenderID   int       `db:"sender_id" json:"senderId"`
	SenderNick string    `db:"sender_nick" json:"senderNick"`
	Body       string    `db:"body" json:"message"`
	Type       string    `db:"message_type" json:"messageType"`
	File       *FileMeta `db:"-" json:"file"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
