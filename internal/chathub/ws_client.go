package chathub

import (
	"encoding/json"
	"log"
	"time"

	"management/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID string
	RoomID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.RoomEvent
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID, roomID string) *WebSocketClient {
	return &WebSocketClient{
		UserID: userID,
		RoomID: roomID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.RoomEvent, sendBuffer),
	}
}

func (c *WebSocketClient) GetUserID() string                       { return c.UserID }
func (c *WebSocketClient) GetRoomID() string                       { return c.RoomID }
func (c *WebSocketClient) GetSendChannel() chan<- models.RoomEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which makes writePump send a close frame and exit.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ERROR: Reading from user %s in room %s: %v", c.UserID, c.RoomID, err)
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("WARNING: Invalid JSON from user %s: %v", c.UserID, err)
			// the hub owns Send, so the error goes through it like any other reply
			frame = models.ClientFrame{Type: "invalid"}
		}

		if !c.Hub.Submit(c, frame) {
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				log.Printf("WARNING: Write to user %s failed: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
