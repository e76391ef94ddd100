package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TicketStatusOpen     = "open"
	TicketStatusAssigned = "assigned"
)

// Customer is the helpdesk profile of a user who opens tickets.
type Customer struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex" json:"user_id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Email     string    `gorm:"size:190" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

// BeforeCreate generates a UUID for the customer if none is set.
func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// Agent is the helpdesk profile of a support agent.
type Agent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex" json:"user_id"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Email     string    `gorm:"size:190" json:"email"`
	Available bool      `gorm:"not null;default:true" json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

func (Agent) TableName() string { return "agents" }

// BeforeCreate generates a UUID for the agent if none is set.
func (a *Agent) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return
}

// Ticket is a support request opened by a customer and optionally assigned to an agent.
type Ticket struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	CustomerID  string     `gorm:"size:36;not null;index" json:"customer_id"`
	AgentID     *string    `gorm:"size:36;index" json:"agent_id,omitempty"`
	Subject     string     `gorm:"size:200;not null" json:"subject"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"size:20;not null;index" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
}

func (Ticket) TableName() string { return "tickets" }

// BeforeCreate generates a UUID and defaults the status to open.
func (t *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = TicketStatusOpen
	}
	return
}
