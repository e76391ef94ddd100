package models

import "time"

// MaxRoomNameLength is the width of the name column, in characters.
const MaxRoomNameLength = 128

// ChatRoom is a named group chat. Rooms are keyed by the name captured from
// the WebSocket route and created on first use.
type ChatRoom struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Name is the unique room name, e.g. "general".
	Name      string    `gorm:"size:128;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }
