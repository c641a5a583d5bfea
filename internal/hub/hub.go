package hub

import (
	"encoding/json"
	"sync"

	"github.com/studyhive/realtime-service/pkg/log"
)

// Hub owns the local subscriber registry: which clients exist, which
// room channel each subscribes to, and which client currently serves a
// user's private channel. Delivery is fire-and-forget; within a room,
// frames go out in the order they enter the broadcast channel.
type Hub struct {
	clients map[string]*Client           // clientID -> client
	rooms   map[int64]map[string]*Client // roomID -> clientID -> client
	users   map[int64]*Client            // userID -> canonical client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *frame
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// frame is one outbound payload, targeted at a room or a single user.
type frame struct {
	roomID int64
	userID int64
	data   []byte
}

// NewHub creates the hub. Call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[int64]map[string]*Client),
		users:      make(map[int64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *frame, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registration and broadcast events until Stop.
func (h *Hub) Run() {
	l := log.L()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			// A reconnect replaces the user's canonical client; the old
			// connection keeps draining until its pumps exit.
			h.users[client.UserID] = client
			h.mu.Unlock()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				if h.users[client.UserID] == client {
					delete(h.users, client.UserID)
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			l.Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case f := <-h.broadcast:
			h.deliver(f)
		}
	}
}

func (h *Hub) deliver(f *frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if f.userID != 0 {
		if client, ok := h.users[f.userID]; ok {
			h.push(client, f.data)
		}
		return
	}

	for _, client := range h.rooms[f.roomID] {
		h.push(client, f.data)
	}
}

func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// Slow consumer: drop the frame, evict the connection.
		go h.Unregister(client)
	}
}

// Register adds a client to the hub. It is a no-op once the hub has
// stopped, so connection goroutines never block against a dead Run loop.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub. Safe after Stop for the
// same reason as Register.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// JoinRoom subscribes a client to a room channel.
func (h *Hub) JoinRoom(client *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
}

// LeaveRoom unsubscribes a client from a room channel.
func (h *Hub) LeaveRoom(client *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// SendToRoom queues a payload for every subscriber of a room channel.
func (h *Hub) SendToRoom(roomID int64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldRoomID, roomID).Msg("room payload marshal failed")
		return
	}
	h.enqueue(&frame{roomID: roomID, data: data})
}

// SendToUser queues a payload for a user's private channel.
func (h *Hub) SendToUser(userID int64, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("user payload marshal failed")
		return
	}
	h.enqueue(&frame{userID: userID, data: data})
}

// SendRawToRoom queues pre-marshalled bytes for a room channel. Used by
// the cross-instance subscriber to avoid re-encoding.
func (h *Hub) SendRawToRoom(roomID int64, data []byte) {
	h.enqueue(&frame{roomID: roomID, data: data})
}

// SendRawToUser queues pre-marshalled bytes for a user channel.
func (h *Hub) SendRawToUser(userID int64, data []byte) {
	h.enqueue(&frame{userID: userID, data: data})
}

func (h *Hub) enqueue(f *frame) {
	select {
	case h.broadcast <- f:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSubscriberCount returns the local subscriber count of a room channel.
func (h *Hub) RoomSubscriberCount(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Stop closes every connection and terminates Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		defer h.mu.Unlock()
		for id, client := range h.clients {
			close(client.Send)
			if client.Conn != nil {
				client.Conn.Close()
			}
			delete(h.clients, id)
		}
		h.rooms = make(map[int64]map[string]*Client)
		h.users = make(map[int64]*Client)
	})
}
