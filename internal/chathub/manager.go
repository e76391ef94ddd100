package chathub

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"management/backend/internal/metrics"
	"management/backend/internal/models"
	"management/backend/internal/storage"
)

const (
	opTimeout = 5 * time.Second
	// roomWorkers is the number of storage workers. A room always maps to the
	// same worker, so its frames are handled in arrival order.
	roomWorkers     = 8
	workerQueueSize = 64
)

// Inbound is a frame read from a client, queued for the hub.
type Inbound struct {
	Client Client
	Frame  models.ClientFrame
}

// delivery is an event produced by a worker, handed back to Run. A nil client
// means the event goes to the whole room.
type delivery struct {
	client Client
	event  models.RoomEvent
}

// ManagerService is the chat hub. Run owns the room membership map; every
// register, unregister, delivery and pub/sub event is handled there. Storage
// work for inbound frames runs on room workers so a slow query only holds up
// the rooms of one worker.
type ManagerService struct {
	rooms map[string]map[Client]struct{}
	// mu guards rooms for readers outside Run.
	mu sync.RWMutex

	// Channels
	IncomingCh   chan Inbound
	RegisterCh   chan Client
	UnregisterCh chan Client
	PubSubCh     chan models.RoomEvent

	Storage storage.Storage

	queues     []chan Inbound
	deliveries chan delivery
	workers    sync.WaitGroup

	done chan struct{}
}

func NewManagerService(s storage.Storage) *ManagerService {
	m := &ManagerService{
		rooms:        make(map[string]map[Client]struct{}),
		IncomingCh:   make(chan Inbound),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		PubSubCh:     make(chan models.RoomEvent),
		Storage:      s,
		queues:       make([]chan Inbound, roomWorkers),
		deliveries:   make(chan delivery, workerQueueSize),
		done:         make(chan struct{}),
	}
	for i := range m.queues {
		m.queues[i] = make(chan Inbound, workerQueueSize)
	}
	return m
}

// Done is closed once Run has returned.
func (m *ManagerService) Done() <-chan struct{} { return m.done }

// Register hands the client to the hub. It reports false when the hub is stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister asks the hub to drop the client. It is a no-op once the hub is stopped.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Submit queues a frame read from the client. It reports false when the hub is stopped.
func (m *ManagerService) Submit(c Client, frame models.ClientFrame) bool {
	select {
	case m.IncomingCh <- Inbound{Client: c, Frame: frame}:
		return true
	case <-m.done:
		return false
	}
}

// RoomSize returns the number of local clients joined to the room.
func (m *ManagerService) RoomSize(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// Run processes hub events until ctx is cancelled, then closes every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	for _, q := range m.queues {
		m.workers.Add(1)
		go m.worker(ctx, q)
	}
	log.Println("INFO: Chat hub started")

	for {
		select {
		case client := <-m.RegisterCh:
			m.addClient(client)

		case client := <-m.UnregisterCh:
			m.removeClient(client)

		case in := <-m.IncomingCh:
			m.dispatch(in)

		case d := <-m.deliveries:
			m.deliver(d)

		case ev := <-m.PubSubCh:
			m.broadcast(ev)

		case <-ctx.Done():
			m.workers.Wait()
			m.shutdown()
			log.Println("INFO: Chat hub stopped")
			return
		}
	}
}

func (m *ManagerService) isMember(c Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[c.GetRoomID()][c]
	return ok
}

func (m *ManagerService) addClient(c Client) {
	m.mu.Lock()
	members, ok := m.rooms[c.GetRoomID()]
	if !ok {
		members = make(map[Client]struct{})
		m.rooms[c.GetRoomID()] = members
	}
	members[c] = struct{}{}
	m.mu.Unlock()

	metrics.WSClients.Inc()
	log.Printf("INFO: User %s joined room %s", c.GetUserID(), c.GetRoomID())
}

// removeClient drops the client and closes it. Unknown clients are ignored, so
// a client is closed at most once.
func (m *ManagerService) removeClient(c Client) {
	m.mu.Lock()
	members, ok := m.rooms[c.GetRoomID()]
	if ok {
		_, ok = members[c]
	}
	if ok {
		delete(members, c)
		if len(members) == 0 {
			delete(m.rooms, c.GetRoomID())
		}
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	c.Close()
	metrics.WSClients.Dec()
	log.Printf("INFO: User %s left room %s", c.GetUserID(), c.GetRoomID())
}

func (m *ManagerService) shutdown() {
	m.mu.Lock()
	var all []Client
	for _, members := range m.rooms {
		for c := range members {
			all = append(all, c)
		}
	}
	m.rooms = make(map[string]map[Client]struct{})
	m.mu.Unlock()

	for _, c := range all {
		c.Close()
		metrics.WSClients.Dec()
	}
}

func roomShard(room string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(room))
	return int(h.Sum32() % uint32(n))
}

// dispatch queues the frame on its room's worker without blocking Run. When
// the worker is backed up the client gets an error instead.
func (m *ManagerService) dispatch(in Inbound) {
	// frames can still arrive from a client the hub already dropped and closed
	if !m.isMember(in.Client) {
		return
	}
	room := in.Client.GetRoomID()
	select {
	case m.queues[roomShard(room, len(m.queues))] <- in:
	default:
		log.Printf("WARNING: Worker queue full, rejecting %s frame from user %s in room %s", in.Frame.Type, in.Client.GetUserID(), room)
		m.reply(in.Client, errorEvent(room, "server busy"))
	}
}

func (m *ManagerService) worker(ctx context.Context, queue <-chan Inbound) {
	defer m.workers.Done()
	for {
		select {
		case in := <-queue:
			m.handleIncoming(ctx, in)
		case <-ctx.Done():
			return
		}
	}
}

// send hands an event back to Run. A nil client addresses the whole room.
func (m *ManagerService) send(ctx context.Context, c Client, ev models.RoomEvent) {
	select {
	case m.deliveries <- delivery{client: c, event: ev}:
	case <-ctx.Done():
	}
}

func (m *ManagerService) deliver(d delivery) {
	if d.client == nil {
		m.broadcast(d.event)
		return
	}
	// the client may have left while its frame was handled
	if m.isMember(d.client) {
		m.reply(d.client, d.event)
	}
}

// handleIncoming runs on a worker. It must not touch clients directly; every
// event goes back to Run through send.
func (m *ManagerService) handleIncoming(ctx context.Context, in Inbound) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	roomName := in.Client.GetRoomID()
	room, err := m.Storage.GetOrCreateRoom(opCtx, roomName)
	if err != nil {
		log.Printf("ERROR: Failed to load room %s: %v", roomName, err)
		m.send(ctx, in.Client, errorEvent(roomName, "room unavailable"))
		return
	}

	switch in.Frame.Type {
	case models.FrameMessage:
		msg, err := m.Storage.CreateMessage(opCtx, room.ID, in.Client.GetUserID(), in.Frame.Body, in.Frame.ParentID)
		if err != nil {
			m.send(ctx, in.Client, errorEvent(roomName, userError(err)))
			return
		}
		m.publish(ctx, opCtx, models.RoomEvent{Type: models.EventMessage, Room: roomName, Message: msg})

	case models.FrameDelete:
		if in.Frame.MessageID == nil {
			m.send(ctx, in.Client, errorEvent(roomName, "message_id is required"))
			return
		}
		id := *in.Frame.MessageID
		msg, err := m.Storage.GetMessage(opCtx, id)
		if err == nil && msg.ChatRoomID != room.ID {
			err = storage.ErrNotFound
		}
		if err != nil {
			m.send(ctx, in.Client, errorEvent(roomName, userError(err)))
			return
		}
		removed, err := m.Storage.DeleteMessage(opCtx, id)
		if err != nil {
			m.send(ctx, in.Client, errorEvent(roomName, userError(err)))
			return
		}
		m.publish(ctx, opCtx, models.RoomEvent{Type: models.EventDeleted, Room: roomName, MessageID: id, Removed: removed})

	case models.FrameHistory:
		msgs, err := m.Storage.ListRoomMessages(opCtx, room.ID, 0)
		if err != nil {
			m.send(ctx, in.Client, errorEvent(roomName, userError(err)))
			return
		}
		m.send(ctx, in.Client, models.RoomEvent{Type: models.EventHistory, Room: roomName, Messages: msgs})

	default:
		m.send(ctx, in.Client, errorEvent(roomName, "unknown frame type"))
	}
}

// publish sends the event through Redis so every instance fans it out. When
// Redis is unavailable the event still reaches the clients of this instance.
func (m *ManagerService) publish(ctx, opCtx context.Context, ev models.RoomEvent) {
	if err := m.Storage.PublishRoomEvent(opCtx, ev); err != nil {
		log.Printf("WARNING: Failed to publish %s event for room %s, broadcasting locally: %v", ev.Type, ev.Room, err)
		m.send(ctx, nil, ev)
	}
}

func (m *ManagerService) broadcast(ev models.RoomEvent) {
	m.mu.RLock()
	members := make([]Client, 0, len(m.rooms[ev.Room]))
	for c := range m.rooms[ev.Room] {
		members = append(members, c)
	}
	m.mu.RUnlock()

	for _, c := range members {
		m.reply(c, ev)
	}
}

// reply delivers the event to one client. A client whose buffer is full is
// dropped rather than stalling the hub. Only Run calls it.
func (m *ManagerService) reply(c Client, ev models.RoomEvent) {
	select {
	case c.GetSendChannel() <- ev:
	default:
		log.Printf("WARNING: Send buffer full for user %s in room %s, disconnecting", c.GetUserID(), c.GetRoomID())
		m.removeClient(c)
	}
}

func errorEvent(room, msg string) models.RoomEvent {
	return models.RoomEvent{Type: models.EventError, Room: room, Error: msg}
}

func userError(err error) string {
	switch {
	case errors.Is(err, storage.ErrIntegrity):
		return "parent message does not exist"
	case errors.Is(err, storage.ErrNotFound):
		return "message not found"
	case errors.Is(err, storage.ErrInvalid):
		return "invalid message"
	default:
		log.Printf("ERROR: Chat operation failed: %v", err)
		return "internal error"
	}
}
