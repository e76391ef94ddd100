package chathub_test

import (
	"context"

	"management/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

// Rooms
func (m *MockStorage) GetOrCreateRoom(ctx context.Context, name string) (*models.ChatRoom, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetRoomByName(ctx context.Context, name string) (*models.ChatRoom, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

// Messages
func (m *MockStorage) CreateMessage(ctx context.Context, roomID uint, authorID, body string, parentID *uint) (*models.GroupMessage, error) {
	args := m.Called(ctx, roomID, authorID, body, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupMessage), args.Error(1)
}

func (m *MockStorage) GetMessage(ctx context.Context, id uint) (*models.GroupMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GroupMessage), args.Error(1)
}

func (m *MockStorage) ListReplies(ctx context.Context, id uint) ([]models.GroupMessage, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]models.GroupMessage), args.Error(1)
}

func (m *MockStorage) ListThread(ctx context.Context, id uint) ([]models.GroupMessage, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]models.GroupMessage), args.Error(1)
}

func (m *MockStorage) ListRoomMessages(ctx context.Context, roomID uint, limit int) ([]models.GroupMessage, error) {
	args := m.Called(ctx, roomID, limit)
	return args.Get(0).([]models.GroupMessage), args.Error(1)
}

func (m *MockStorage) DeleteMessage(ctx context.Context, id uint) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) PublishRoomEvent(ctx context.Context, ev models.RoomEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// Helpdesk
func (m *MockStorage) GetCustomerByUser(ctx context.Context, userID string) (*models.Customer, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockStorage) GetAgentByUser(ctx context.Context, userID string) (*models.Agent, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockStorage) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func (m *MockStorage) AssignTicket(ctx context.Context, ticketID, agentID string) (*models.Ticket, error) {
	args := m.Called(ctx, ticketID, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Ticket), args.Error(1)
}
