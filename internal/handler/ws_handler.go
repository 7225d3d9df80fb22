package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/chat-relay/internal/config"
	"github.com/weiawesome/chat-relay/internal/domain"
	"github.com/weiawesome/chat-relay/internal/engine"
	"github.com/weiawesome/chat-relay/internal/hub"
	"github.com/weiawesome/chat-relay/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub    *hub.Hub
	engine engine.RoomEngine
	wsCfg  config.WebSocketConfig

	// sessions tracks connections whose room cleanup has not finished.
	sessions sync.WaitGroup
}

func NewWSHandler(h *hub.Hub, e engine.RoomEngine, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:    h,
		engine: e,
		wsCfg:  wsCfg,
	}
}

func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/chat/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades the request and gives the connection a fresh
// session id. When the socket closes the session leaves all its rooms.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	ctx := log.WithSession(log.WithLogger(context.Background(), log.L()), client.ID)

	if err := h.hub.Register(client); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("rejecting websocket connection")
		conn.Close()
		return
	}

	h.sessions.Add(1)
	go client.WritePump()
	go func() {
		defer h.sessions.Done()
		client.ReadPump(func(c *hub.Client, message []byte) {
			h.handleMessage(ctx, c, message)
		})
		if err := h.engine.Disconnect(ctx, client.ID); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("failed to clean up session rooms")
		}
	}()
}

// Wait blocks until every closed connection has left its rooms, or until ctx
// ends. Call it after the hub has stopped so that open sockets get closed.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorEvent("invalid message format"))
		return
	}

	switch base.Type {
	case domain.MsgTypeJoinRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorEvent("invalid join_room message"))
			return
		}
		if _, err := h.engine.JoinRoom(ctx, client.ID, msg.Room); err != nil {
			h.reportError(ctx, client, base.Type, err)
		}

	case domain.MsgTypeLeaveRoom:
		var msg domain.RoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorEvent("invalid leave_room message"))
			return
		}
		if _, err := h.engine.LeaveRoom(ctx, client.ID, msg.Room); err != nil {
			h.reportError(ctx, client, base.Type, err)
		}

	case domain.MsgTypeChangeRoom:
		var msg domain.ChangeRoomMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorEvent("invalid change_room message"))
			return
		}
		if err := h.engine.ChangeRoom(ctx, client.ID, msg.OldRoom, msg.NewRoom); err != nil {
			h.reportError(ctx, client, base.Type, err)
		}

	case domain.MsgTypeSendMessage:
		var msg domain.SendMessageWS
		if err := json.Unmarshal(message, &msg); err != nil {
			client.SendMessage(domain.NewErrorEvent("invalid send_message message"))
			return
		}
		if _, err := h.engine.SendMessage(ctx, client.ID, msg.Username, msg.Room, msg.Message); err != nil {
			h.reportError(ctx, client, base.Type, err)
		}

	case domain.MsgTypeGetLoginCount:
		n, err := h.engine.GetLoginCount(ctx)
		if err != nil {
			h.reportError(ctx, client, base.Type, err)
			return
		}
		client.SendMessage(domain.NewLoginCountEvent(n))

	case domain.MsgTypePing:
		client.SendMessage(domain.NewPongEvent())

	default:
		client.SendMessage(domain.NewErrorEvent("unknown message type"))
	}
}

func (h *WSHandler) reportError(ctx context.Context, client *hub.Client, msgType string, err error) {
	l := log.Ctx(ctx)
	l.Warn().Err(err).Str("type", msgType).Msg("websocket request failed")
	client.SendMessage(domain.NewErrorEvent(err.Error()))
}
