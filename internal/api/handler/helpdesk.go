package handler

import (
	"errors"
	"net/http"

	"management/backend/internal/models"
	"management/backend/internal/routing"
	"management/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type ticketCreateRequest struct {
	Subject     string `json:"subject" binding:"required"`
	Description string `json:"description"`
}

// CustomerDetail returns the caller's customer profile.
func (h *Handler) CustomerDetail(c *gin.Context, _ routing.Params) {
	if !allowMethod(c, http.MethodGet) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	customer, err := h.Storage.GetCustomerByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// AgentDetail returns the caller's agent profile.
func (h *Handler) AgentDetail(c *gin.Context, _ routing.Params) {
	if !allowMethod(c, http.MethodGet) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	agent, err := h.Storage.GetAgentByUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// TicketCreate opens a ticket for the calling customer.
func (h *Handler) TicketCreate(c *gin.Context, _ routing.Params) {
	if !allowMethod(c, http.MethodPost) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req ticketCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	customer, err := h.Storage.GetCustomerByUser(c.Request.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only customers can open tickets"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	ticket := &models.Ticket{
		CustomerID:  customer.ID,
		Subject:     req.Subject,
		Description: req.Description,
	}
	if err := h.Storage.CreateTicket(c.Request.Context(), ticket); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// TicketAssign assigns the ticket captured as id to the calling agent.
func (h *Handler) TicketAssign(c *gin.Context, params routing.Params) {
	if !allowMethod(c, http.MethodPost) {
		return
	}
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	agent, err := h.Storage.GetAgentByUser(c.Request.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only agents can assign tickets"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	ticket, err := h.Storage.AssignTicket(c.Request.Context(), params.Get("id"), agent.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}
