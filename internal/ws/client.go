package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"room-chat-service/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client→server event names.
const (
	eventJoinRoom    = "join-room"
	eventLeaveRoom   = "leave-room"
	eventSendMessage = "send-message"
	eventTyping      = "typing"
	eventStopTyping  = "stop-typing"
)

// clientEvent is one decoded inbound frame.
type clientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomPayload struct {
	RoomID int `json:"roomId"`
}

type sendMessagePayload struct {
	RoomID  int    `json:"roomId"`
	Message string `json:"message"`
}

// Client is one authenticated live connection. It is created only after the
// gate passed and never outlives the underlying socket. The rooms set is its
// transport subscriptions, guarded by the hub's mutex.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	user  models.User
	rooms map[int]struct{}
	info  ConnInfo

	// ctx outlives the upgrade request and is cancelled on disconnect.
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(hub *Hub, conn *websocket.Conn, user models.User, info ConnInfo) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		user:   user,
		rooms:  make(map[int]struct{}),
		info:   info,
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue hands a marshalled event to the write pump without blocking the
// fan-out loop. A client whose buffer is full is cut off; its read loop then
// fails and triggers normal disconnect cleanup.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Printf("websocket send buffer full conn_id=%s user_id=%d, dropping connection", c.info.ConnID, c.user.ID)
		c.conn.Close()
	}
}

// sendError reports a failure to this connection only.
func (c *Client) sendError(message string) {
	payload, err := json.Marshal(models.Event{Type: models.EventError, Data: models.ErrorEvent{Message: message}})
	if err != nil {
		return
	}
	c.enqueue(payload)
}

// readLoop pumps inbound frames into the events channel. It is the only
// reader of the connection. The channel is closed when the socket drops.
func (c *Client) readLoop(events chan<- clientEvent) {
	defer close(events)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error conn_id=%s: %v", c.info.ConnID, err)
			}
			return
		}

		var ev clientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendError("malformed event")
			continue
		}
		events <- ev
	}
}

// writePump is the only writer of the connection. It drains the send channel
// and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
