package store

import (
	"context"

	"github.com/weiawesome/chat-relay/internal/domain"
)

// MessageStore is an append-only log per room. Log order is arrival order.
type MessageStore interface {
	// Append adds msg to the end of the room's log.
	Append(ctx context.Context, room string, msg *domain.ChatMessage) error

	// RangeFromEnd returns up to count of the most recent entries, oldest first.
	RangeFromEnd(ctx context.Context, room string, count int) ([]domain.ChatMessage, error)

	// RangeAll returns the whole log, oldest first.
	RangeAll(ctx context.Context, room string) ([]domain.ChatMessage, error)

	Close() error
}

// MembershipChange reports the effect of an Add or Remove.
type MembershipChange struct {
	// Changed is true when the session was newly inserted (Add) or actually removed (Remove).
	Changed bool
	// SessionRooms is how many rooms the session belongs to after the call.
	SessionRooms int64
}

// MembershipStore keeps the set of sessions in each room, plus the reverse
// index of rooms per session. Both sides change in one transaction.
type MembershipStore interface {
	Add(ctx context.Context, room, sessionID string) (MembershipChange, error)
	Remove(ctx context.Context, room, sessionID string) (MembershipChange, error)
	Contains(ctx context.Context, room, sessionID string) (bool, error)
	Members(ctx context.Context, room string) ([]string, error)
	RoomsOf(ctx context.Context, sessionID string) ([]string, error)
}

// CounterStore is a single integer register.
type CounterStore interface {
	// Get returns the current value; an unset counter reads as zero.
	Get(ctx context.Context) (int64, error)
	Set(ctx context.Context, value int64) error
	Incr(ctx context.Context) (int64, error)
	// DecrFloor decrements without going below zero.
	DecrFloor(ctx context.Context) (int64, error)
}
