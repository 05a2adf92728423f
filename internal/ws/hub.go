package ws

import (
	"encoding/json"
	"log"
	"sync"

	"room-chat-service/internal/models"
)

// Hub maintains the transport subscriptions of live connections and fans
// events out to them. Transport membership is ephemeral per-process state and
// deliberately independent of the persisted participant rows: reconnecting or
// running multiple devices never touches durable state.
type Hub struct {
	rooms map[int]map[*Client]struct{}
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[int]map[*Client]struct{})}
}

// JoinRoom subscribes the connection to a room's live events and notifies the
// room's other subscribers. Joining twice is a no-op beyond the notice
// re-firing.
func (h *Hub) JoinRoom(c *Client, roomID int) {
	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	h.mu.Unlock()

	h.BroadcastExcept(roomID, c, models.Event{
		Type: models.EventUserJoined,
		Data: models.PresenceEvent{UserID: c.user.ID, Username: c.user.Username},
	})
}

// LeaveRoom unsubscribes the connection from a room and notifies the
// remaining subscribers.
func (h *Hub) LeaveRoom(c *Client, roomID int) {
	h.mu.Lock()
	_, subscribed := c.rooms[roomID]
	if subscribed {
		h.removeLocked(c, roomID)
	}
	h.mu.Unlock()

	if !subscribed {
		return
	}
	h.BroadcastExcept(roomID, c, models.Event{
		Type: models.EventUserLeft,
		Data: models.PresenceEvent{UserID: c.user.ID, Username: c.user.Username},
	})
}

// Disconnect removes the connection from every room it is still subscribed
// to, firing a user-left notice per room. A stop-typing notice is emitted as
// well so observers are not left with a stale typing indicator.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	roomIDs := make([]int, 0, len(c.rooms))
	for roomID := range c.rooms {
		roomIDs = append(roomIDs, roomID)
		h.removeLocked(c, roomID)
	}
	h.mu.Unlock()

	for _, roomID := range roomIDs {
		h.BroadcastExcept(roomID, c, models.Event{
			Type: models.EventUserStopTyping,
			Data: models.StopTypingEvent{UserID: c.user.ID},
		})
		h.BroadcastExcept(roomID, c, models.Event{
			Type: models.EventUserLeft,
			Data: models.PresenceEvent{UserID: c.user.ID, Username: c.user.Username},
		})
	}
}

// Subscribed reports whether the connection currently receives the room's
// live events.
func (h *Hub) Subscribed(c *Client, roomID int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

// Broadcast delivers an event to every connection currently subscribed to the
// room, including the sender. Delivery is at-most-once at the instant of the
// call; connections joining later must fetch history over REST.
func (h *Hub) Broadcast(roomID int, event models.Event) {
	h.BroadcastExcept(roomID, nil, event)
}

// BroadcastExcept delivers an event to every subscriber of a room apart from
// the given connection.
func (h *Hub) BroadcastExcept(roomID int, except *Client, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("marshal event %q: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// BroadcastMessage delivers a persisted message to its room. This is the
// broadcast port the ingestion pipeline is wired to.
func (h *Hub) BroadcastMessage(msg models.Message) {
	h.Broadcast(msg.RoomID, models.NewMessageEvent(msg))
}

// NotifyTyping relays a typing signal to the room's other subscribers. Never
// persisted and never echoed back to the originator.
func (h *Hub) NotifyTyping(c *Client, roomID int) {
	if !h.Subscribed(c, roomID) {
		return
	}
	h.BroadcastExcept(roomID, c, models.Event{
		Type: models.EventUserTyping,
		Data: models.PresenceEvent{UserID: c.user.ID, Username: c.user.Username},
	})
}

// NotifyStopTyping relays a stop-typing signal to the room's other
// subscribers.
func (h *Hub) NotifyStopTyping(c *Client, roomID int) {
	if !h.Subscribed(c, roomID) {
		return
	}
	h.BroadcastExcept(roomID, c, models.Event{
		Type: models.EventUserStopTyping,
		Data: models.StopTypingEvent{UserID: c.user.ID},
	})
}

// removeLocked drops the connection from a room. Caller holds h.mu.
func (h *Hub) removeLocked(c *Client, roomID int) {
	delete(c.rooms, roomID)
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
}
