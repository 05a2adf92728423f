package models

// Server→client event types carried over websocket connections.
const (
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventNewMessage     = "new-message"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventError          = "error"
)

// Event is the envelope broadcast through websockets.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PresenceEvent is the payload of user-joined, user-left and user-typing.
type PresenceEvent struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
}

// StopTypingEvent is the payload of user-stop-typing.
type StopTypingEvent struct {
	UserID int `json:"userId"`
}

// ErrorEvent is sent to a single connection when one of its events failed.
type ErrorEvent struct {
	Message string `json:"message"`
}

// NewMessageEvent wraps a persisted message for broadcast. Every entry point
// into the ingestion pipeline funnels through this one shape.
func NewMessageEvent(msg Message) Event {
	return Event{Type: EventNewMessage, Data: msg}
}
