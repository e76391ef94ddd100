package models

import "time"

// GroupMessage is a chat message posted to a ChatRoom.
// A message may reply to another message through ParentID; the inverse side of
// that relation is Replies. Deleting a message removes its whole reply subtree.
type GroupMessage struct {
	// ID is assigned by the store on insert.
	ID uint `gorm:"primaryKey" json:"id"`
	// ChatRoomID is the room the message was posted to.
	ChatRoomID uint      `gorm:"not null;index" json:"chatroom_id"`
	ChatRoom   *ChatRoom `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	// AuthorID is the user id of the poster.
	AuthorID string `gorm:"type:text;not null;index" json:"author_id"`
	// Body is the text content of the message.
	Body string `gorm:"type:text;not null" json:"body"`
	// CreatedAt is set by the store when the row is inserted.
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// ParentID references the message this one replies to. Nil for top-level messages.
	ParentID *uint         `gorm:"index" json:"parent_id,omitempty"`
	Parent   *GroupMessage `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	// Replies is only populated when explicitly preloaded.
	Replies []GroupMessage `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
}

func (GroupMessage) TableName() string { return "group_messages" }

// IsReply reports whether the message has a parent.
func (m *GroupMessage) IsReply() bool { return m.ParentID != nil }
