package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"direct-chat/metrics"
)

// Push event names.
const (
	EventNewMessage  = "newMessage"
	EventOnlineUsers = "onlineUsers"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Event is the frame written to a websocket.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one live websocket bound to a user.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once

	UserID    string
	ChannelID string
}

// Hub owns the live sockets, addressed by channel id, and keeps the
// connection registry in step with socket lifecycle events.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // channelID -> client

	registry     *ConnectionRegistry
	log          zerolog.Logger
	pingInterval time.Duration
	pongTimeout  time.Duration
}

// NewHub creates a hub that records bindings in registry.
func NewHub(registry *ConnectionRegistry, log zerolog.Logger, pingInterval, pongTimeout time.Duration) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		registry:     registry,
		log:          log.With().Str("component", "hub").Logger(),
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
	}
}

// Attach registers conn for userID under a fresh channel id and starts
// its pumps. A previous socket for the same user is closed.
func (h *Hub) Attach(userID string, conn *websocket.Conn) *Client {
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		ChannelID: uuid.NewString(),
	}

	h.mu.Lock()
	h.clients[client.ChannelID] = client
	h.mu.Unlock()

	prev := h.registry.Register(userID, client.ChannelID)
	if prev != "" {
		h.mu.RLock()
		old := h.clients[prev]
		h.mu.RUnlock()
		if old != nil {
			h.log.Info().Str("user_id", userID).Str("channel_id", prev).Msg("closing superseded connection")
			old.close()
		}
	}
	metrics.ConnectedUsers.Set(float64(h.registry.Len()))
	h.log.Info().Str("user_id", userID).Str("channel_id", client.ChannelID).Msg("client connected")

	go client.writeMessages()
	go client.readMessages()

	h.broadcastOnlineUsers()
	return client
}

// detach removes client from the hub and releases its registry binding.
func (h *Hub) detach(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ChannelID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ChannelID)
	close(client.send)
	h.mu.Unlock()

	h.registry.Release(client.UserID, client.ChannelID)
	metrics.ConnectedUsers.Set(float64(h.registry.Len()))
	h.log.Info().Str("user_id", client.UserID).Str("channel_id", client.ChannelID).Msg("client disconnected")

	h.broadcastOnlineUsers()
}

// Emit queues event for the socket bound to channelID. It never blocks:
// it returns false when the channel is gone or its queue is full.
func (h *Hub) Emit(channelID, event string, payload any) bool {
	data, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to marshal event")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[channelID]
	if !ok {
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		h.log.Warn().Str("channel_id", channelID).Str("event", event).Msg("send queue full, dropping event")
		return false
	}
}

func (h *Hub) broadcastOnlineUsers() {
	data, err := json.Marshal(Event{Event: EventOnlineUsers, Data: h.registry.OnlineUsers()})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// Close disconnects every socket.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

// close shuts the socket; the read pump then detaches the client.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

func (c *Client) readMessages() {
	defer func() {
		c.hub.detach(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Str("user_id", c.UserID).Msg("unexpected close")
			}
			return
		}
		// Clients only listen; sends go through the REST API.
		c.hub.log.Debug().Str("user_id", c.UserID).Int("bytes", len(msg)).Msg("ignoring inbound frame")
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug().Err(err).Str("user_id", c.UserID).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
