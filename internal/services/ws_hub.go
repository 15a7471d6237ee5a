package services

import (
	"encoding/json"
	"errors"
	"sync"

	"kissan-connect-backend/internal/monitoring"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event names exchanged over the realtime channel
const (
	EventJoin        = "join"
	EventJoined      = "joined"
	EventError       = "error"
	EventNewFollower = "newFollower"
	EventNewMessage  = "newMessage"
)

// ErrClientClosed is returned when a disconnected client tries to join
var ErrClientClosed = errors.New("client disconnected")

// WSMessage represents a WebSocket frame in either direction
type WSMessage struct {
	Type     string      `json:"type"`
	Username string      `json:"username,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

// ClientState is the lifecycle position of a connection
type ClientState int

const (
	StateConnected ClientState = iota
	StateJoined
	StateDisconnected
)

func (s ClientState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

// Client is one live connection. Frames queued for it are read from
// Outbound by the transport's write loop; the queue is closed when the client
// is unregistered.
type Client struct {
	ID   string
	send chan []byte

	// guarded by WSHub.mu
	userID string
	state  ClientState
}

// Outbound returns the client's frame queue
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// WSHub owns the mapping from user ID to live connections. A user may hold
// several connections (one per device); a connection belongs to at most one
// user channel at a time.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*Client]struct{}
	channels   map[string]map[*Client]struct{}
	sendBuffer int
}

// NewWSHub creates a new WebSocket hub
func NewWSHub(sendBuffer int) *WSHub {
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	return &WSHub{
		clients:    make(map[*Client]struct{}),
		channels:   make(map[string]map[*Client]struct{}),
		sendBuffer: sendBuffer,
	}
}

// NewClient creates a connection in the Connected state
func (h *WSHub) NewClient() *Client {
	c := &Client{
		ID:    uuid.New().String(),
		send:  make(chan []byte, h.sendBuffer),
		state: StateConnected,
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// Register joins a client to a user's channel. Joining under a different
// user moves the client; joining the same user again is a no-op.
func (h *WSHub) Register(userID string, c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch c.state {
	case StateDisconnected:
		return ErrClientClosed
	case StateJoined:
		if c.userID == userID {
			return nil
		}
		h.detach(c)
	}

	set, ok := h.channels[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.channels[userID] = set
	}
	set[c] = struct{}{}
	c.userID = userID
	c.state = StateJoined
	monitoring.RealtimeConnections.Inc()

	log.Debug().Str("user_id", userID).Str("client_id", c.ID).Msg("WebSocket connection joined")
	return nil
}

// Unregister removes a client from its channel and closes its queue. Safe to
// call more than once and on clients that never joined.
func (h *WSHub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnect(c)
}

// disconnect must be called with mu held
func (h *WSHub) disconnect(c *Client) {
	if c.state == StateDisconnected {
		return
	}
	if c.state == StateJoined {
		h.detach(c)
	}
	delete(h.clients, c)
	c.state = StateDisconnected
	close(c.send)
	log.Debug().Str("client_id", c.ID).Msg("WebSocket connection unregistered")
}

// detach must be called with mu held
func (h *WSHub) detach(c *Client) {
	if set, ok := h.channels[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.channels, c.userID)
		}
	}
	c.userID = ""
	monitoring.RealtimeConnections.Dec()
}

// Dispatch pushes an event to every connection of a user and returns how many
// received it. Delivery is best effort: a user without connections, or a
// connection whose queue is full, simply misses the event.
func (h *WSHub) Dispatch(userID, event string, payload interface{}) int {
	data, err := json.Marshal(WSMessage{Type: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("Failed to marshal realtime event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.channels[userID] {
		select {
		case c.send <- data:
			delivered++
		default:
			monitoring.RealtimeDeliveries.WithLabelValues(event, "dropped").Inc()
			log.Warn().Str("user_id", userID).Str("client_id", c.ID).Str("event", event).Msg("Realtime queue full, event dropped")
		}
	}

	if delivered == 0 {
		monitoring.RealtimeDeliveries.WithLabelValues(event, "offline").Inc()
	} else {
		monitoring.RealtimeDeliveries.WithLabelValues(event, "delivered").Add(float64(delivered))
	}
	return delivered
}

// Send queues a frame for a single client, e.g. a join acknowledgement
func (h *WSHub) Send(c *Client, msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if c.state == StateDisconnected {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// State returns the client's lifecycle state and channel
func (h *WSHub) State(c *Client) (ClientState, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.state, c.userID
}

// ConnectionCount returns how many connections are joined to a user's channel
func (h *WSHub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID])
}

// IsOnline checks if a user has at least one joined connection
func (h *WSHub) IsOnline(userID string) bool {
	return h.ConnectionCount(userID) > 0
}

// Close disconnects every client; used on shutdown
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.disconnect(c)
	}
}
