package domain

// WebSocket message types from client.
const (
	MsgTypeJoinRoom      = "join_room"
	MsgTypeLeaveRoom     = "leave_room"
	MsgTypeChangeRoom    = "change_room"
	MsgTypeSendMessage   = "send_message"
	MsgTypeGetLoginCount = "get_login_count"
	MsgTypePing          = "ping"
)

// BaseMessage is decoded first to route a frame by type.
type BaseMessage struct {
	Type string `json:"type"`
}

type RoomMessage struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type ChangeRoomMessage struct {
	Type    string `json:"type"`
	OldRoom string `json:"old_room"`
	NewRoom string `json:"new_room"`
}

type SendMessageWS struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Room     string `json:"room"`
}
