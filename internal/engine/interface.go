package engine

import (
	"context"

	"github.com/weiawesome/chat-relay/internal/domain"
)

// Gateway pushes events to locally connected sessions.
type Gateway interface {
	// Deliver sends event to one session. It returns
	// domain.ErrSessionNotConnected when the session has no local connection.
	Deliver(sessionID string, event *domain.Event) error
	// DeliverToRoom sends event to every listed member that is connected
	// locally and reports how many received it.
	DeliverToRoom(room string, members []string, event *domain.Event) int
}

// RoomEngine owns membership transitions and message admission.
type RoomEngine interface {
	// JoinRoom reports whether the session was newly added to room.
	JoinRoom(ctx context.Context, sessionID, room string) (bool, error)
	// LeaveRoom reports whether the session was actually removed from room.
	LeaveRoom(ctx context.Context, sessionID, room string) (bool, error)
	ChangeRoom(ctx context.Context, sessionID, oldRoom, newRoom string) error
	SendMessage(ctx context.Context, sessionID, username, room, text string) (*domain.ChatMessage, error)
	GetLastN(ctx context.Context, room string, n int) ([]domain.ChatMessage, error)
	GetFullHistory(ctx context.Context, room string) ([]domain.ChatMessage, error)
	GetLoginCount(ctx context.Context) (int64, error)
	Members(ctx context.Context, room string) ([]string, error)
	// Disconnect leaves every room the session still belongs to.
	Disconnect(ctx context.Context, sessionID string) error
}
