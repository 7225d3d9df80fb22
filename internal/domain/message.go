package domain

import "time"

// ChatMessage is one entry in a room's log. It is never modified after creation.
type ChatMessage struct {
	Username  string    `json:"Username"`
	Message   string    `json:"Message"`
	Room      string    `json:"Room"`
	Timestamp time.Time `json:"Timestamp"`
}

// NewChatMessage stamps a message with the current UTC time.
func NewChatMessage(username, text, room string, now time.Time) *ChatMessage {
	return &ChatMessage{
		Username:  username,
		Message:   text,
		Room:      room,
		Timestamp: now.UTC(),
	}
}
