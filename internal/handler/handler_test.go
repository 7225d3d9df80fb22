package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/chat-relay/internal/config"
	"github.com/weiawesome/chat-relay/internal/domain"
	"github.com/weiawesome/chat-relay/internal/engine"
	"github.com/weiawesome/chat-relay/internal/hub"
	"github.com/weiawesome/chat-relay/internal/store"
	"github.com/weiawesome/chat-relay/pkg/response"
)

type testServer struct {
	mr      *miniredis.Miniredis
	router  *gin.Engine
	members store.MembershipStore
	ws      *WSHandler
	stopHub context.CancelFunc
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	wsCfg := config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
	h := hub.NewHub(wsCfg)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	keys := store.DefaultKeys()
	members := store.NewRedisMembershipStore(client, keys)
	e := engine.NewRoomEngine(
		store.NewRedisMessageStore(client, keys, 0),
		members,
		store.NewRedisCounterStore(client, keys),
		h,
		engine.Options{OpTimeout: 2 * time.Second},
	)

	r := gin.New()
	NewHTTPHandler(e, 5).RegisterRoutes(r)
	ws := NewWSHandler(h, e, wsCfg)
	ws.RegisterRoutes(r)

	return &testServer{mr: mr, router: r, members: members, ws: ws, stopHub: cancel}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestSendMessageAndReadBack(t *testing.T) {
	s := newTestServer(t)

	for _, text := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		w := s.do(t, http.MethodPost, "/api/chat/sendmessage", domain.SendMessageRequest{
			Username: "alice", Message: text, Room: "lobby",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var echoed domain.ChatMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &echoed))
		assert.Equal(t, text, echoed.Message)
		assert.False(t, echoed.Timestamp.IsZero())
	}

	w := s.do(t, http.MethodGet, "/api/chat/GetLast5Messages?room=lobby", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var last []domain.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
	require.Len(t, last, 5)
	assert.Equal(t, "three", last[0].Message)
	assert.Equal(t, "seven", last[4].Message)

	w = s.do(t, http.MethodGet, "/api/chat/GetChatHistory?room=lobby", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []domain.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 7)
}

func TestEmptyRoomHistoryIsEmptyArray(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/chat/GetLast5Messages?room=void", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestJoinLeaveAndCount(t *testing.T) {
	s := newTestServer(t)

	count := func() int64 {
		w := s.do(t, http.MethodGet, "/api/chat/TotalLoggedInUser", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var n int64
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &n))
		return n
	}

	assert.Equal(t, int64(0), count())

	join := domain.RoomRequest{UserName: "c1", Room: "lobby"}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/chat/joinroom", join).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/chat/joinroom", join).Code)
	assert.Equal(t, int64(1), count())

	change := domain.ChangeRoomRequest{UserName: "c1", Room: "lobby", NewRoom: "hall"}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/chat/changeroom", change).Code)
	ok, err := s.members.Contains(context.Background(), "hall", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	leave := domain.RoomRequest{UserName: "c1", Room: "hall"}
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/chat/leaveroom", leave).Code)
	assert.Equal(t, int64(0), count())
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/chat/GetChatHistory", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/chat/joinroom", map[string]string{"Room": "lobby"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/chat/changeroom", map[string]string{"UserName": "c1", "Room": "lobby"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestStoreFailureIsConflict(t *testing.T) {
	s := newTestServer(t)
	s.mr.SetError("LOADING server is loading")

	w := s.do(t, http.MethodPost, "/api/chat/joinroom", domain.RoomRequest{UserName: "c1", Room: "lobby"})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, domain.ErrStoreUnavailable.Error())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent skips frames until one of the wanted type arrives.
func readEvent(t *testing.T, conn *websocket.Conn, eventType string) domain.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev domain.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == eventType {
			return ev
		}
	}
}

func TestWebSocketRoomFlow(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	alice := dial(t, srv)
	bob := dial(t, srv)

	require.NoError(t, alice.WriteJSON(domain.RoomMessage{Type: domain.MsgTypeJoinRoom, Room: "lobby"}))
	joined := readEvent(t, alice, domain.EventJoined)
	assert.Equal(t, "lobby", joined.Room)

	require.NoError(t, bob.WriteJSON(domain.RoomMessage{Type: domain.MsgTypeJoinRoom, Room: "lobby"}))
	readEvent(t, bob, domain.EventJoined)

	require.NoError(t, alice.WriteJSON(domain.SendMessageWS{
		Type: domain.MsgTypeSendMessage, Username: "alice", Message: "hi", Room: "lobby",
	}))
	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readEvent(t, conn, domain.EventReceiveMessage)
		require.NotNil(t, ev.Message)
		assert.Equal(t, "hi", ev.Message.Message)
		assert.Equal(t, "alice", ev.Message.Username)
	}

	require.NoError(t, alice.WriteJSON(domain.ChangeRoomMessage{
		Type: domain.MsgTypeChangeRoom, OldRoom: "lobby", NewRoom: "hall",
	}))
	changed := readEvent(t, alice, domain.EventRoomChanged)
	assert.Equal(t, "hall", changed.Room)

	require.NoError(t, bob.WriteJSON(domain.BaseMessage{Type: domain.MsgTypeGetLoginCount}))
	counted := readEvent(t, bob, domain.EventLoginCount)
	require.NotNil(t, counted.Count)
	assert.Equal(t, int64(2), *counted.Count)

	require.NoError(t, bob.WriteJSON(domain.BaseMessage{Type: domain.MsgTypePing}))
	readEvent(t, bob, domain.EventPong)

	require.NoError(t, bob.WriteJSON(domain.BaseMessage{Type: "dance"}))
	failed := readEvent(t, bob, domain.EventError)
	assert.Equal(t, "unknown message type", failed.Error)

	require.NoError(t, bob.WriteJSON(domain.RoomMessage{Type: domain.MsgTypeJoinRoom}))
	failed = readEvent(t, bob, domain.EventError)
	assert.Contains(t, failed.Error, domain.ErrInvalidArgument.Error())

	bob.Close()
	assert.Eventually(t, func() bool {
		members, err := s.members.Members(context.Background(), "lobby")
		return err == nil && len(members) == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestHubShutdownLeavesRoomsBeforeWaitReturns(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conns := []*websocket.Conn{dial(t, srv), dial(t, srv)}
	for i, room := range []string{"lobby", "hall"} {
		require.NoError(t, conns[i].WriteJSON(domain.RoomMessage{Type: domain.MsgTypeJoinRoom, Room: room}))
		readEvent(t, conns[i], domain.EventJoined)
	}

	s.stopHub()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.ws.Wait(ctx))

	// No polling: Wait returning means every socket has left its rooms.
	for _, room := range []string{"lobby", "hall"} {
		members, err := s.members.Members(context.Background(), room)
		require.NoError(t, err)
		assert.Empty(t, members, room)
	}
	w := s.do(t, http.MethodGet, "/api/chat/TotalLoggedInUser", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", strings.TrimSpace(w.Body.String()))
}
