package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"room-chat-service/internal/chat"
	"room-chat-service/internal/observability"
	"room-chat-service/internal/presence"
	"room-chat-service/internal/repositories"
)

// Handler owns the websocket endpoint: it gates the handshake, then runs one
// dispatch goroutine per connection consuming its decoded events.
type Handler struct {
	hub      *Hub
	gate     *Gate
	ingestor *chat.Ingestor
	rooms    repositories.RoomRepository
	presence *presence.Tracker
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, gate *Gate, ingestor *chat.Ingestor, rooms repositories.RoomRepository, presence *presence.Tracker) *Handler {
	return &Handler{hub: hub, gate: gate, ingestor: ingestor, rooms: rooms, presence: presence}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates and upgrades the connection, then starts its event
// loops. Rejected connections never receive or emit anything.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("room-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, err := h.gate.Authenticate(ctx, tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErrorMessage(err)})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(h.hub, conn, user, info)

	h.presence.MarkOnline(user.ID)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	publishLifecycle(client, "ws_connect", "")

	events := make(chan clientEvent)
	go client.writePump()
	go client.readLoop(events)
	go h.dispatch(client, events)
}

// dispatch is the per-connection event loop. It exits when the read loop
// closes the events channel, then runs disconnect cleanup: every transport
// room is left (each firing user-left), presence goes offline, and nothing is
// delivered to or from the connection afterwards.
func (h *Handler) dispatch(client *Client, events <-chan clientEvent) {
	defer func() {
		h.hub.Disconnect(client)
		h.presence.MarkOffline(client.user.ID)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		publishLifecycle(client, "ws_disconnect", "")
		client.cancel()
		client.conn.Close()
	}()

	for ev := range events {
		h.handleEvent(client, ev)
	}
}

func (h *Handler) handleEvent(client *Client, ev clientEvent) {
	switch ev.Event {
	case eventJoinRoom:
		var payload roomPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			client.sendError("malformed event")
			return
		}
		h.handleJoin(client, payload.RoomID)

	case eventLeaveRoom:
		var payload roomPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			client.sendError("malformed event")
			return
		}
		h.hub.LeaveRoom(client, payload.RoomID)

	case eventSendMessage:
		var payload sendMessagePayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			client.sendError("malformed event")
			return
		}
		h.handleSend(client, payload)

	case eventTyping:
		var payload roomPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			client.sendError("malformed event")
			return
		}
		h.hub.NotifyTyping(client, payload.RoomID)

	case eventStopTyping:
		var payload roomPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			client.sendError("malformed event")
			return
		}
		h.hub.NotifyStopTyping(client, payload.RoomID)

	default:
		client.sendError("unknown event")
	}
}

// handleJoin gates the transport join on persisted access membership: a
// connection may only subscribe to rooms its user participates in.
func (h *Handler) handleJoin(client *Client, roomID int) {
	member, err := h.rooms.IsParticipant(client.ctx, roomID, client.user.ID)
	if err != nil {
		client.sendError("failed to join room")
		return
	}
	if !member {
		client.sendError("not a room participant")
		return
	}
	h.hub.JoinRoom(client, roomID)
}

func (h *Handler) handleSend(client *Client, payload sendMessagePayload) {
	if !h.hub.Subscribed(client, payload.RoomID) {
		client.sendError("join the room first")
		return
	}

	sender := chat.Sender{ID: client.user.ID, Nick: client.user.Username}
	if _, err := h.ingestor.IngestText(client.ctx, payload.RoomID, sender, payload.Message); err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			client.sendError("message is empty")
			return
		}
		observability.IncWSEvent("ws_error")
		publishLifecycle(client, "ws_error", err.Error())
		client.sendError("failed to send message")
		return
	}
	observability.IncMessageIngested("live")
}

func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func authErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing token"
	case errors.Is(err, ErrUnknownUser):
		return "unknown user"
	default:
		return "invalid token"
	}
}

// publishLifecycle emits a connection lifecycle event to the event bus.
func publishLifecycle(client *Client, event, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     client.info.ConnID,
			"duration_ms": time.Since(client.info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   client.info.UserID,
			"device_id": client.info.DeviceID,
			"ip":        client.info.IP,
		},
	}

	headers := observability.BuildHeaders(client.info.RequestID, client.info.TraceID)
	_ = observability.PublishEvent(client.ctx, "ws_events.rooms", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
