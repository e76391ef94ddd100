package chathub_test

import (
	"sync/atomic"

	"management/backend/internal/models"
)

type MockClient struct {
	userID      string
	roomID      string
	RecvChannel chan models.RoomEvent
	closed      atomic.Int32
}

func newMockClient(userID, roomID string) *MockClient {
	return newMockClientWithBuffer(userID, roomID, 10)
}

func newMockClientWithBuffer(userID, roomID string, size int) *MockClient {
	return &MockClient{
		userID:      userID,
		roomID:      roomID,
		RecvChannel: make(chan models.RoomEvent, size),
	}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetRoomID() string {
	return c.roomID
}

func (c *MockClient) GetSendChannel() chan<- models.RoomEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}

func (c *MockClient) CloseCount() int {
	return int(c.closed.Load())
}
