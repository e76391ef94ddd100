package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"management/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCustomerByUser returns the customer profile of a user.
func (s *Service) GetCustomerByUser(ctx context.Context, userID string) (*models.Customer, error) {
	var customer models.Customer
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("customer for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		log.Printf("ERROR: Failed to get customer for user %s: %v", userID, err)
		return nil, err
	}
	return &customer, nil
}

// GetAgentByUser returns the agent profile of a user.
func (s *Service) GetAgentByUser(ctx context.Context, userID string) (*models.Agent, error) {
	var agent models.Agent
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("agent for user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		log.Printf("ERROR: Failed to get agent for user %s: %v", userID, err)
		return nil, err
	}
	return &agent, nil
}

// SaveCustomer inserts or updates a customer profile.
func (s *Service) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	return s.DB.WithContext(ctx).Save(customer).Error
}

// SaveAgent inserts or updates an agent profile.
func (s *Service) SaveAgent(ctx context.Context, agent *models.Agent) error {
	return s.DB.WithContext(ctx).Save(agent).Error
}

// CreateTicket opens a ticket for an existing customer.
func (s *Service) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	if strings.TrimSpace(ticket.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalid)
	}
	ticket.Status = models.TicketStatusOpen
	ticket.AgentID = nil
	ticket.AssignedAt = nil

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.Select("id").First(&customer, "id = ?", ticket.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: customer %s does not exist", ErrIntegrity, ticket.CustomerID)
			}
			return err
		}
		return tx.Create(ticket).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		err = fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if err != nil && !errors.Is(err, ErrIntegrity) {
		log.Printf("ERROR: Failed to create ticket for customer %s: %v", ticket.CustomerID, err)
	}
	return err
}

// GetTicket returns the ticket with the given id.
func (s *Service) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.DB.WithContext(ctx).First(&ticket, "id = ?", ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// AssignTicket assigns the ticket to the agent. Reassigning moves the ticket to the new agent.
func (s *Service) AssignTicket(ctx context.Context, ticketID, agentID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ticket, "id = ?", ticketID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound)
			}
			return err
		}

		var agent models.Agent
		if err := tx.Select("id").First(&agent, "id = ?", agentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: agent %s does not exist", ErrIntegrity, agentID)
			}
			return err
		}

		now := time.Now().UTC()
		ticket.AgentID = &agent.ID
		ticket.Status = models.TicketStatusAssigned
		ticket.AssignedAt = &now
		return tx.Model(&ticket).Select("AgentID", "Status", "AssignedAt", "UpdatedAt").Updates(&ticket).Error
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrIntegrity) {
			log.Printf("ERROR: Failed to assign ticket %s to agent %s: %v", ticketID, agentID, err)
		}
		return nil, err
	}
	return &ticket, nil
}
