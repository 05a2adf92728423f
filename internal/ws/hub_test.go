package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat-service/internal/models"
)

func newTestClient(hub *Hub, userID int, username string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:    hub,
		send:   make(chan []byte, sendBufferSize),
		user:   models.User{ID: userID, Username: username},
		rooms:  make(map[int]struct{}),
		info:   ConnInfo{ConnID: "test-conn"},
		ctx:    ctx,
		cancel: cancel,
	}
}

type receivedEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// drain returns every event currently buffered for the client, in order.
func drain(t *testing.T, c *Client) []receivedEvent {
	t.Helper()
	var events []receivedEvent
	for {
		select {
		case payload := <-c.send:
			var ev receivedEvent
			require.NoError(t, json.Unmarshal(payload, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestJoinRoomNotifiesOthersNotSelf(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	bob := newTestClient(hub, 2, "bob")

	hub.JoinRoom(alice, 1)
	hub.JoinRoom(bob, 1)

	require.True(t, hub.Subscribed(alice, 1))
	require.True(t, hub.Subscribed(bob, 1))

	assert.Empty(t, drain(t, bob), "joiner does not see its own notice")

	aliceEvents := drain(t, alice)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, models.EventUserJoined, aliceEvents[0].Type)

	var presence models.PresenceEvent
	require.NoError(t, json.Unmarshal(aliceEvents[0].Data, &presence))
	assert.Equal(t, 2, presence.UserID)
	assert.Equal(t, "bob", presence.Username)
}

func TestJoinRoomIdempotent(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	bob := newTestClient(hub, 2, "bob")

	hub.JoinRoom(alice, 1)
	hub.JoinRoom(bob, 1)
	drain(t, alice)

	hub.JoinRoom(bob, 1)
	require.True(t, hub.Subscribed(bob, 1))

	// the notice re-fires but the subscription does not duplicate
	events := drain(t, alice)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventUserJoined, events[0].Type)

	hub.LeaveRoom(bob, 1)
	assert.False(t, hub.Subscribed(bob, 1))
}

func TestLeaveRoomWithoutSubscriptionIsSilent(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	bob := newTestClient(hub, 2, "bob")
	hub.JoinRoom(alice, 1)

	hub.LeaveRoom(bob, 1)
	assert.Empty(t, drain(t, alice))
}

func TestBroadcastMessageReachesAllSubscribersIncludingSender(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	bob := newTestClient(hub, 2, "bob")
	carol := newTestClient(hub, 3, "carol")

	hub.JoinRoom(alice, 1)
	hub.JoinRoom(bob, 1)
	hub.JoinRoom(carol, 2)
	drain(t, alice)
	drain(t, bob)

	msg := models.Message{ID: 5, RoomID: 1, SenderID: 1, SenderNick: "alice", Body: "hello", Type: models.MessageTypeText, CreatedAt: time.Now()}
	hub.BroadcastMessage(msg)

	for _, c := range []*Client{alice, bob} {
		events := drain(t, c)
		require.Len(t, events, 1)
		assert.Equal(t, models.EventNewMessage, events[0].Type)

		var got models.Message
		require.NoError(t, json.Unmarshal(events[0].Data, &got))
		assert.Equal(t, 5, got.ID)
		assert.Equal(t, "hello", got.Body)
	}

	assert.Empty(t, drain(t, carol), "broadcast stays within its room")
}

func TestTypingRelayExcludesOriginator(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	bob := newTestClient(hub, 2, "bob")
	hub.JoinRoom(alice, 1)
	hub.JoinRoom(bob, 1)
	drain(t, alice)

	hub.NotifyTyping(bob, 1)
	hub.NotifyStopTyping(bob, 1)

	assert.Empty(t, drain(t, bob))

	events := drain(t, alice)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventUserTyping, events[0].Type)
	assert.Equal(t, models.EventUserStopTyping, events[1].Type)

	var stop models.StopTypingEvent
	require.NoError(t, json.Unmarshal(events[1].Data, &stop))
	assert.Equal(t, 2, stop.UserID)
}

func TestTypingRelayRequiresSubscription(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	mallory := newTestClient(hub, 3, "mallory")
	hub.JoinRoom(alice, 1)

	hub.NotifyTyping(mallory, 1)
	assert.Empty(t, drain(t, alice))
}

func TestDisconnectClearsTypingAndLeavesEveryRoom(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, 1, "alice")
	bob := newTestClient(hub, 2, "bob")
	hub.JoinRoom(alice, 1)
	hub.JoinRoom(alice, 2)
	hub.JoinRoom(bob, 1)
	hub.JoinRoom(bob, 2)
	drain(t, alice)
	drain(t, bob)

	hub.Disconnect(bob)

	require.False(t, hub.Subscribed(bob, 1))
	require.False(t, hub.Subscribed(bob, 2))

	events := drain(t, alice)
	require.Len(t, events, 4, "stop-typing and user-left per room")

	byType := map[string]int{}
	for _, ev := range events {
		byType[ev.Type]++
	}
	assert.Equal(t, 2, byType[models.EventUserStopTyping])
	assert.Equal(t, 2, byType[models.EventUserLeft])

	// a second disconnect is a no-op
	hub.Disconnect(bob)
	assert.Empty(t, drain(t, alice))
}
