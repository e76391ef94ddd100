package storage

import (
	"context"
	"encoding/json"
	"errors"

	"management/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrIntegrity is returned when a write references a row that does not exist,
	// e.g. a reply whose parent message is missing.
	ErrIntegrity = errors.New("integrity error")
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for input rejected before touching the store.
	ErrInvalid = errors.New("invalid input")
)

// RoomChannelPrefix prefixes the Redis pub/sub channel of every chatroom.
const RoomChannelPrefix = "chatroom:"

type Storage interface {
	GetOrCreateRoom(ctx context.Context, name string) (*models.ChatRoom, error)
	GetRoomByName(ctx context.Context, name string) (*models.ChatRoom, error)

	CreateMessage(ctx context.Context, roomID uint, authorID, body string, parentID *uint) (*models.GroupMessage, error)
	GetMessage(ctx context.Context, id uint) (*models.GroupMessage, error)
	ListReplies(ctx context.Context, id uint) ([]models.GroupMessage, error)
	ListThread(ctx context.Context, id uint) ([]models.GroupMessage, error)
	ListRoomMessages(ctx context.Context, roomID uint, limit int) ([]models.GroupMessage, error)
	DeleteMessage(ctx context.Context, id uint) (int64, error)

	PublishRoomEvent(ctx context.Context, ev models.RoomEvent) error

	GetCustomerByUser(ctx context.Context, userID string) (*models.Customer, error)
	GetAgentByUser(ctx context.Context, userID string) (*models.Agent, error)
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	AssignTicket(ctx context.Context, ticketID, agentID string) (*models.Ticket, error)
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor. rdb may be nil when no pub/sub is needed (admin CLI, tests).
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
	}
}

// PublishRoomEvent publishes the event on the room's Redis channel.
func (s *Service) PublishRoomEvent(ctx context.Context, ev models.RoomEvent) error {
	if s.Redis == nil {
		return errors.New("redis is not configured")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, RoomChannelPrefix+ev.Room, payload).Err()
}

// SubscribeRooms subscribes to the channels of all chatrooms.
func (s *Service) SubscribeRooms(ctx context.Context) *redis.PubSub {
	return s.Redis.PSubscribe(ctx, RoomChannelPrefix+"*")
}
