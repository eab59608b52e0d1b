package ws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/studyquest/backend/internal/session"
)

// ErrTooManyConnections is returned by AddClient when the hub is full.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn      *websocket.Conn
	hub       *Hub
	userID    string
	sessionID string
	send      chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.RemoveClient(c)
			return
		}
	}
}

// Hub fans reward notifications out to the websocket clients of the user
// that earned them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int // 0 means unlimited
	seq      uint64
}

// NewHub creates a hub accepting at most maxConns clients; 0 means no limit.
func NewHub(maxConns int) *Hub {
	return &Hub{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
	}
}

// AddClient registers conn as a listener of the session's user and queues
// the hello message.
func (h *Hub) AddClient(conn *websocket.Conn, info session.Info, hello HelloPayload) (*client, error) {
	c := &client{
		conn:      conn,
		hub:       h,
		userID:    info.UserID,
		sessionID: info.ID,
		send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	if h.maxConns > 0 && len(h.clients) >= h.maxConns {
		h.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	h.clients[c] = true
	h.seq++
	data, _ := json.Marshal(WSMessage{Type: MsgHello, Seq: h.seq, Payload: hello})
	h.mu.Unlock()

	c.send <- data
	go c.writePump()
	return c, nil
}

// RemoveClient unregisters c and closes its send queue.
func (h *Hub) RemoveClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish delivers ev to every client of ev.UserID. It is the session
// manager's event observer.
func (h *Hub) Publish(ev session.Event) {
	msg := messageFor(ev)

	h.mu.Lock()
	h.seq++
	msg.Seq = h.seq
	var targets []*client
	for c := range h.clients {
		if c.userID == ev.UserID {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("Reward message marshal failed")
		return
	}
	for _, c := range targets {
		h.deliver(c, data)
	}
}

func (h *Hub) deliver(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		// Client can't keep up, disconnect it
		log.WithField("user", c.userID).Warn("ws client too slow, disconnecting")
		go h.RemoveClient(c)
	}
}

// CloseSession disconnects every client attached through sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	for c := range h.clients {
		if c.sessionID == sessionID {
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
