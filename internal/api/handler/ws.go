package handler

import (
	"log"
	"net/http"

	"management/backend/internal/chathub"
	"management/backend/internal/routing"

	"github.com/gin-gonic/gin"
)

// ChatroomSocket upgrades the connection and joins the caller to the chatroom
// captured as chatroom_name. The room is created on first use.
func (h *Handler) ChatroomSocket(c *gin.Context, params routing.Params) {
	if !allowMethod(c, http.MethodGet) {
		return
	}

	userID := c.GetHeader(UserIDHeader)
	if userID == "" {
		userID = c.Query("user_id")
	}
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user id missing"})
		return
	}

	room, err := h.Storage.GetOrCreateRoom(c.Request.Context(), params.Get("chatroom_name"))
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Printf("WARNING: WebSocket upgrade failed for user %s: %v", userID, err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, userID, room.Name)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
