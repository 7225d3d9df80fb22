package domain

import "time"

// Event types pushed to sessions.
const (
	EventJoined         = "joined"
	EventLeft           = "left"
	EventRoomChanged    = "room_changed"
	EventReceiveMessage = "receive_message"
	EventLoginCount     = "login_count"
	EventError          = "error"
	EventPong           = "pong"
)

// Event is what the gateway delivers to a session.
type Event struct {
	Type      string       `json:"type"`
	Room      string       `json:"room,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Message   *ChatMessage `json:"message,omitempty"`
	Count     *int64       `json:"count,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

func newEvent(eventType, room string) *Event {
	return &Event{Type: eventType, Room: room, Timestamp: time.Now().UTC()}
}

func NewJoinedEvent(room, sessionID string) *Event {
	e := newEvent(EventJoined, room)
	e.SessionID = sessionID
	return e
}

func NewLeftEvent(room, sessionID string) *Event {
	e := newEvent(EventLeft, room)
	e.SessionID = sessionID
	return e
}

// NewRoomChangedEvent carries the room the session moved into.
func NewRoomChangedEvent(newRoom string) *Event {
	return newEvent(EventRoomChanged, newRoom)
}

func NewMessageEvent(msg *ChatMessage) *Event {
	e := newEvent(EventReceiveMessage, msg.Room)
	e.Message = msg
	return e
}

func NewLoginCountEvent(count int64) *Event {
	e := newEvent(EventLoginCount, "")
	e.Count = &count
	return e
}

func NewErrorEvent(message string) *Event {
	e := newEvent(EventError, "")
	e.Error = message
	return e
}

func NewPongEvent() *Event {
	return newEvent(EventPong, "")
}
