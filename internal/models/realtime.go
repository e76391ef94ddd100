package models

// Event types sent from the server to chatroom clients.
const (
	EventMessage = "message"
	EventDeleted = "deleted"
	EventHistory = "history"
	EventError   = "error"
)

// Frame types accepted from chatroom clients.
const (
	FrameMessage = "message"
	FrameDelete  = "delete"
	FrameHistory = "history"
)

// ClientFrame is a JSON frame read from a chatroom WebSocket.
type ClientFrame struct {
	Type      string `json:"type"`
	Body      string `json:"body,omitempty"`
	ParentID  *uint  `json:"parent_id,omitempty"`
	MessageID *uint  `json:"message_id,omitempty"`
}

// RoomEvent is published on the room's pub/sub channel and written to clients.
type RoomEvent struct {
	Type      string         `json:"type"`
	Room      string         `json:"room"`
	Message   *GroupMessage  `json:"message,omitempty"`
	Messages  []GroupMessage `json:"messages,omitempty"`
	MessageID uint           `json:"message_id,omitempty"`
	Removed   int64          `json:"removed,omitempty"`
	Error     string         `json:"error,omitempty"`
}
