package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/carpore/carpore-backend/pkg/logger"
)

const (
	EventCheckoutState = "checkout_state"
	EventNotification  = "notification"
	EventAuthState     = "auth_state" // signed in or out on another device
	EventPong          = "pong"
)

// Event is the envelope every pushed message uses
type Event struct {
	Type   string      `json:"type"`
	Data   interface{} `json:"data,omitempty"`
	SentAt time.Time   `json:"sent_at"`
}

// ClientMessage is what a browser may send over the socket
type ClientMessage struct {
	Type string `json:"type"` // ping
}

// Client is one socket of a signed-in user
type Client struct {
	Hub           *Hub
	Conn          *Conn
	UserID        uint
	Send          chan []byte
	MessageCount  int       // messages received in the current second
	LastResetTime time.Time // start of the current rate window
	RateMu        sync.Mutex
}

// NewClient wires a connection to the hub with a buffered send queue
func NewClient(hub *Hub, conn *Conn, userID uint) *Client {
	return &Client{
		Hub:           hub,
		Conn:          conn,
		UserID:        userID,
		Send:          make(chan []byte, 256),
		LastResetTime: time.Now(),
	}
}

type directMessage struct {
	userID  uint
	message []byte
}

// Hub tracks open sockets per user (several devices each) and fans events out
type Hub struct {
	clients    map[uint][]*Client
	register   chan *Client
	unregister chan *Client
	direct     chan *directMessage
	stop       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint][]*Client),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		direct:     make(chan *directMessage, 1024),
		stop:       make(chan struct{}),
	}
}

// Run processes registrations and deliveries until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			sessions := len(h.clients[client.UserID])
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":        client.UserID,
				"total_sessions": sessions,
			})

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.direct:
			h.mu.RLock()
			clientList := h.clients[msg.userID]
			for _, client := range clientList {
				select {
				case client.Send <- msg.message:
				default:
					go h.Unregister(client)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"user_id": msg.userID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientList, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	remaining := make([]*Client, 0, len(clientList))
	found := false
	for _, c := range clientList {
		if c == client {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	if !found {
		return
	}
	if len(remaining) == 0 {
		delete(h.clients, client.UserID)
	} else {
		h.clients[client.UserID] = remaining
	}
	close(client.Send)

	logger.Info("WebSocket client unregistered", map[string]interface{}{
		"user_id":            client.UserID,
		"remaining_sessions": len(remaining),
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clientList := range h.clients {
		for _, c := range clientList {
			close(c.Send)
		}
		delete(h.clients, userID)
	}
}

// Stop ends Run and closes every client queue
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// SendToUser pushes an event to every open session of the user. Offline
// users and a full queue drop the event; pushes are best effort.
func (h *Hub) SendToUser(userID uint, eventType string, data interface{}) error {
	if userID == 0 || !h.IsUserOnline(userID) {
		return nil
	}

	payload, err := json.Marshal(Event{Type: eventType, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		logger.Error("Failed to marshal websocket event", err, map[string]interface{}{
			"type": eventType,
		})
		return err
	}

	select {
	case h.direct <- &directMessage{userID: userID, message: payload}:
	default:
		logger.Warn("Direct channel full, event dropped", map[string]interface{}{
			"user_id": userID,
			"type":    eventType,
		})
	}
	return nil
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) IsUserOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SessionCount returns the number of open sockets for the user
func (h *Hub) SessionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// HandleClientMessage answers pings and enforces the per-socket rate limit
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.RateMu.Lock()
	now := time.Now()
	if now.Sub(client.LastResetTime) >= time.Second {
		client.MessageCount = 0
		client.LastResetTime = now
	}
	client.MessageCount++
	count := client.MessageCount
	client.RateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == "ping" {
		if err := h.SendToUser(client.UserID, EventPong, nil); err != nil {
			logger.Error("Failed to answer ping", err, map[string]interface{}{
				"user_id": client.UserID,
			})
		}
	}
}
