package database

import (
	"time"

	"gorm.io/gorm"
)

// Migrations returns the ordered, append-only list of schema changes.
// A released migration must never be edited; add a new one instead.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     "0001_chat_initial",
			Description: "create chat_rooms and group_messages",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&chatRoom0001{}, &groupMessage0001{})
			},
		},
		{
			Version:     "0002_groupmessage_parent",
			Description: "add group_messages.parent_id (nullable, cascading self-reference)",
			Up: func(tx *gorm.DB) error {
				if err := tx.Exec(`ALTER TABLE group_messages
					ADD COLUMN parent_id BIGINT
					CONSTRAINT fk_group_messages_parent REFERENCES group_messages (id) ON DELETE CASCADE`).Error; err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX idx_group_messages_parent_id ON group_messages (parent_id)`).Error
			},
		},
		{
			Version:     "0003_helpdesk_initial",
			Description: "create customers, agents and tickets",
			Up: func(tx *gorm.DB) error {
				return tx.Migrator().CreateTable(&customer0003{}, &agent0003{}, &ticket0003{})
			},
		},
	}
}

// Snapshots of each table as the migration that created it left it. Later
// changes to internal/models must not alter what an old migration replays.

type chatRoom0001 struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"size:128;not null;uniqueIndex:idx_chat_rooms_name"`
	CreatedAt time.Time `gorm:"not null"`
}

func (chatRoom0001) TableName() string { return "chat_rooms" }

type groupMessage0001 struct {
	ID         uint          `gorm:"primaryKey"`
	ChatRoomID uint          `gorm:"not null;index:idx_group_messages_chat_room_id"`
	ChatRoom   *chatRoom0001 `gorm:"constraint:OnDelete:CASCADE"`
	AuthorID   string        `gorm:"type:text;not null;index:idx_group_messages_author_id"`
	Body       string        `gorm:"type:text;not null"`
	CreatedAt  time.Time     `gorm:"not null;index:idx_group_messages_created_at"`
}

func (groupMessage0001) TableName() string { return "group_messages" }

type customer0003 struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_customers_user_id"`
	Name      string    `gorm:"size:120;not null"`
	Email     string    `gorm:"size:190"`
	CreatedAt time.Time `gorm:"not null"`
}

func (customer0003) TableName() string { return "customers" }

type agent0003 struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_agents_user_id"`
	Name      string    `gorm:"size:120;not null"`
	Email     string    `gorm:"size:190"`
	Available bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
}

func (agent0003) TableName() string { return "agents" }

type ticket0003 struct {
	ID          string        `gorm:"primaryKey;size:36"`
	CustomerID  string        `gorm:"size:36;not null;index:idx_tickets_customer_id"`
	Customer    *customer0003 `gorm:"constraint:OnDelete:CASCADE"`
	AgentID     *string       `gorm:"size:36;index:idx_tickets_agent_id"`
	Agent       *agent0003    `gorm:"constraint:OnDelete:SET NULL"`
	Subject     string        `gorm:"size:200;not null"`
	Description string        `gorm:"type:text"`
	Status      string        `gorm:"size:20;not null;index:idx_tickets_status"`
	CreatedAt   time.Time     `gorm:"not null"`
	UpdatedAt   time.Time     `gorm:"not null"`
	AssignedAt  *time.Time
}

func (ticket0003) TableName() string { return "tickets" }
