package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"room-chat-service/internal/chat"
	"room-chat-service/internal/mocks"
	"room-chat-service/internal/models"
	"room-chat-service/internal/presence"
	"room-chat-service/internal/repositories"
)

// memoryMessages is an in-memory message store for socket round-trips.
type memoryMessages struct {
	mu     sync.Mutex
	nextID int
	msgs   []models.Message
}

func (r *memoryMessages) CreateMessage(_ context.Context, msg models.Message) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now()
	r.msgs = append(r.msgs, msg)
	return msg, nil
}

func (r *memoryMessages) ListRoomMessages(_ context.Context, roomID int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, m := range r.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

var _ repositories.MessageRepository = (*memoryMessages)(nil)

type testServer struct {
	srv      *httptest.Server
	messages *memoryMessages
}

func newWSTestServer(t *testing.T, participants map[int][]int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 1).Return(models.User{ID: 1, Username: "alice"}, nil)
	users.On("GetUser", mock.Anything, 2).Return(models.User{ID: 2, Username: "bob"}, nil)
	users.On("SetOnline", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	rooms := new(mocks.RoomRepositoryMock)
	for roomID, members := range participants {
		allowed := map[int]struct{}{}
		for _, userID := range members {
			allowed[userID] = struct{}{}
		}
		for userID := 1; userID <= 2; userID++ {
			_, ok := allowed[userID]
			rooms.On("IsParticipant", mock.Anything, roomID, userID).Return(ok, nil)
		}
	}

	messages := &memoryMessages{}
	hub := NewHub()
	ingestor := chat.NewIngestor(rooms, messages, hub)
	gate := NewGate(&verifierStub{ids: map[string]int{"alice-token": 1, "bob-token": 2}}, users)
	handler := NewHandler(hub, gate, ingestor, rooms, presence.NewTracker(users))

	router := gin.New()
	router.GET("/ws", handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, messages: messages}
}

func (ts *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readEvent(t *testing.T, conn *websocket.Conn) receivedEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev receivedEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame: %s", raw)
}

func TestHandshakeRejectsBadCredentials(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	for _, url := range []string{
		ts.srv.URL + "/ws",
		ts.srv.URL + "/ws?token=forged",
	} {
		resp, err := http.Get(url)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestHandshakeAcceptsBearerHeader(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer alice-token"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestLiveRoomSession(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	alice := ts.dial(t, "alice-token")
	bob := ts.dial(t, "bob-token")

	send(t, alice, "join-room", map[string]int{"roomId": 1})
	// the echo of her own message confirms the join landed before bob's
	send(t, alice, "send-message", map[string]interface{}{"roomId": 1, "message": "anyone here?"})
	require.Equal(t, models.EventNewMessage, readEvent(t, alice).Type)

	send(t, bob, "join-room", map[string]int{"roomId": 1})

	// alice sees bob arrive; bob saw nobody because his own join is silent
	joined := readEvent(t, alice)
	require.Equal(t, models.EventUserJoined, joined.Type)
	var presenceEv models.PresenceEvent
	require.NoError(t, json.Unmarshal(joined.Data, &presenceEv))
	require.Equal(t, "bob", presenceEv.Username)

	// typing relays to alice only
	send(t, bob, "typing", map[string]int{"roomId": 1})
	typing := readEvent(t, alice)
	require.Equal(t, models.EventUserTyping, typing.Type)

	// a sent message reaches both, sender included
	send(t, bob, "send-message", map[string]interface{}{"roomId": 1, "message": "status green"})
	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn)
		require.Equal(t, models.EventNewMessage, ev.Type)

		var msg models.Message
		require.NoError(t, json.Unmarshal(ev.Data, &msg))
		assert.Equal(t, "status green", msg.Body)
		assert.Equal(t, "bob", msg.SenderNick)
		assert.Equal(t, 2, msg.SenderID)
		assert.NotZero(t, msg.ID)
	}

	// both messages were persisted before fan-out
	stored, err := ts.messages.ListRoomMessages(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	// dropping bob's socket clears typing state and announces the departure
	bob.Close()
	stop := readEvent(t, alice)
	require.Equal(t, models.EventUserStopTyping, stop.Type)
	left := readEvent(t, alice)
	require.Equal(t, models.EventUserLeft, left.Type)
	expectSilence(t, alice)
}

func TestJoinRequiresPersistedParticipation(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1}})

	bob := ts.dial(t, "bob-token")
	send(t, bob, "join-room", map[string]int{"roomId": 1})

	ev := readEvent(t, bob)
	require.Equal(t, models.EventError, ev.Type)
	var errEv models.ErrorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &errEv))
	require.Equal(t, "not a room participant", errEv.Message)
}

func TestSendRequiresTransportJoin(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	alice := ts.dial(t, "alice-token")
	send(t, alice, "send-message", map[string]interface{}{"roomId": 1, "message": "hi"})

	ev := readEvent(t, alice)
	require.Equal(t, models.EventError, ev.Type)
	var errEv models.ErrorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &errEv))
	require.Equal(t, "join the room first", errEv.Message)
	require.Empty(t, ts.messages.msgs)
}

func TestEmptyMessageRejectedWithoutSideEffects(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	alice := ts.dial(t, "alice-token")
	send(t, alice, "join-room", map[string]int{"roomId": 1})
	send(t, alice, "send-message", map[string]interface{}{"roomId": 1, "message": "   "})

	ev := readEvent(t, alice)
	require.Equal(t, models.EventError, ev.Type)
	var errEv models.ErrorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &errEv))
	require.Equal(t, "message is empty", errEv.Message)
	require.Empty(t, ts.messages.msgs)
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	alice := ts.dial(t, "alice-token")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	ev := readEvent(t, alice)
	require.Equal(t, models.EventError, ev.Type)

	send(t, alice, "self-destruct", map[string]int{})
	ev = readEvent(t, alice)
	require.Equal(t, models.EventError, ev.Type)
	var errEv models.ErrorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &errEv))
	require.Equal(t, "unknown event", errEv.Message)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	ts := newWSTestServer(t, map[int][]int{1: {1, 2}})

	alice := ts.dial(t, "alice-token")
	bob := ts.dial(t, "bob-token")

	send(t, alice, "join-room", map[string]int{"roomId": 1})
	send(t, alice, "send-message", map[string]interface{}{"roomId": 1, "message": "checking in"})
	require.Equal(t, models.EventNewMessage, readEvent(t, alice).Type)

	send(t, bob, "join-room", map[string]int{"roomId": 1})
	require.Equal(t, models.EventUserJoined, readEvent(t, alice).Type)

	send(t, bob, "leave-room", map[string]int{"roomId": 1})
	require.Equal(t, models.EventUserLeft, readEvent(t, alice).Type)

	send(t, alice, "send-message", map[string]interface{}{"roomId": 1, "message": fmt.Sprintf("hello at %d", time.Now().Unix())})
	require.Equal(t, models.EventNewMessage, readEvent(t, alice).Type)
	expectSilence(t, bob)
}
