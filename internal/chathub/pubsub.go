package chathub

import (
	"context"
	"encoding/json"
	"log"

	"management/backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// ListenPubSub forwards room events received from Redis to the hub until ctx is
// cancelled or the channel is closed. Every instance subscribes to all rooms and
// delivers each event to its own local clients.
func (m *ManagerService) ListenPubSub(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Println("WARNING: Redis subscription channel closed")
				return
			}

			var ev models.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("ERROR: Failed to decode event from %s: %v", msg.Channel, err)
				continue
			}
			if ev.Room == "" {
				log.Printf("WARNING: Dropping event without room from %s", msg.Channel)
				continue
			}

			select {
			case m.PubSubCh <- ev:
			case <-ctx.Done():
				return
			case <-m.done:
				return
			}
		}
	}
}

// StartPubSubListener subscribes to every chatroom channel and runs ListenPubSub
// in the background. The subscription is closed when ctx is cancelled.
func (m *ManagerService) StartPubSubListener(ctx context.Context, sub *redis.PubSub) {
	go func() {
		defer sub.Close()
		m.ListenPubSub(ctx, sub.Channel())
	}()
}
