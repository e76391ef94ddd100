package chathub

import "management/backend/internal/models"

// Client is one connection joined to a chatroom. It abstracts the transport so
// the hub can fan events out to WebSocket clients and test doubles alike.
type Client interface {
	// GetUserID returns the user the connection was opened for.
	GetUserID() string
	// GetRoomID returns the name of the chatroom the client joined.
	GetRoomID() string

	// GetSendChannel returns the channel the hub writes outgoing events to.
	GetSendChannel() chan<- models.RoomEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close is called by the hub exactly once, after the client left the room.
	Close()
}
