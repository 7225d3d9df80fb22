package domain

// SendMessageRequest is the body of POST /api/chat/sendmessage.
type SendMessageRequest struct {
	Username string `json:"Username"`
	Message  string `json:"Message"`
	Room     string `json:"Room" binding:"required"`
}

// RoomRequest is the body of the join and leave endpoints. UserName names the
// session whose membership changes.
type RoomRequest struct {
	UserName string `json:"UserName" binding:"required"`
	Room     string `json:"Room" binding:"required"`
}

// ChangeRoomRequest moves session UserName from Room to NewRoom.
type ChangeRoomRequest struct {
	UserName string `json:"UserName" binding:"required"`
	Room     string `json:"Room" binding:"required"`
	NewRoom  string `json:"newRoom" binding:"required"`
}
