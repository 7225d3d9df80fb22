package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/chat-relay/internal/domain"
	"github.com/weiawesome/chat-relay/internal/engine"
	"github.com/weiawesome/chat-relay/pkg/log"
	"github.com/weiawesome/chat-relay/pkg/response"
)

const defaultRecentCount = 5

type HTTPHandler struct {
	engine      engine.RoomEngine
	recentCount int
}

// NewHTTPHandler serves the chat API. recentCount is how many entries
// GetLast5Messages returns.
func NewHTTPHandler(e engine.RoomEngine, recentCount int) *HTTPHandler {
	if recentCount <= 0 {
		recentCount = defaultRecentCount
	}
	return &HTTPHandler{
		engine:      e,
		recentCount: recentCount,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/chat")
	{
		api.GET("/GetLast5Messages", h.GetLastMessages)
		api.GET("/GetChatHistory", h.GetChatHistory)
		api.POST("/sendmessage", h.SendMessage)
		api.POST("/joinroom", h.JoinRoom)
		api.POST("/leaveroom", h.LeaveRoom)
		api.POST("/changeroom", h.ChangeRoom)
		api.GET("/TotalLoggedInUser", h.TotalLoggedInUser)
	}

	r.GET("/health", h.HealthCheck)
}

func (h *HTTPHandler) GetLastMessages(c *gin.Context) {
	room, ok := roomQuery(c)
	if !ok {
		return
	}

	messages, err := h.engine.GetLastN(c.Request.Context(), room, h.recentCount)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, messages)
}

func (h *HTTPHandler) GetChatHistory(c *gin.Context) {
	room, ok := roomQuery(c)
	if !ok {
		return
	}

	messages, err := h.engine.GetFullHistory(c.Request.Context(), room)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, messages)
}

// SendMessage appends to the room's log and broadcasts. HTTP callers have no
// connection, so the username stands in as the session for auditing.
func (h *HTTPHandler) SendMessage(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	msg, err := h.engine.SendMessage(c.Request.Context(), req.Username, req.Username, req.Room, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, msg)
}

func (h *HTTPHandler) JoinRoom(c *gin.Context) {
	var req domain.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if _, err := h.engine.JoinRoom(c.Request.Context(), req.UserName, req.Room); err != nil {
		fail(c, err)
		return
	}
	response.Empty(c)
}

func (h *HTTPHandler) LeaveRoom(c *gin.Context) {
	var req domain.RoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if _, err := h.engine.LeaveRoom(c.Request.Context(), req.UserName, req.Room); err != nil {
		fail(c, err)
		return
	}
	response.Empty(c)
}

func (h *HTTPHandler) ChangeRoom(c *gin.Context) {
	var req domain.ChangeRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.engine.ChangeRoom(c.Request.Context(), req.UserName, req.Room, req.NewRoom); err != nil {
		fail(c, err)
		return
	}
	response.Empty(c)
}

func (h *HTTPHandler) TotalLoggedInUser(c *gin.Context) {
	n, err := h.engine.GetLoginCount(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, n)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func roomQuery(c *gin.Context) (string, bool) {
	room := c.Query("room")
	if room == "" {
		response.BadRequest(c, "room is required")
		return "", false
	}
	return room, true
}

// fail maps engine errors onto the API: bad input is a 400, everything else
// is a 409 carrying the raw error text.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	if errors.Is(err, domain.ErrInvalidArgument) {
		response.BadRequest(c, err.Error())
		return
	}

	l := log.Ctx(c.Request.Context())
	l.Error().Err(err).Msg("chat request failed")
	response.Conflict(c, err.Error())
}
