package ws

import "time"

// ConnInfo carries the identity and tracing context captured at handshake
// time. It is attached to the lifecycle events published for the connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
