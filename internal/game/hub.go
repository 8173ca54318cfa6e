package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

const writeDeadline = 10 * time.Second

// WSMessage is the envelope for everything sent to a websocket client.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type Client struct {
	conn     *websocket.Conn
	playerID string
	mu       sync.Mutex
}

// Hub fans engine events out to every connected websocket client. It is
// the production Broadcaster: Publish never blocks, dropping events when
// the outbound channel is full rather than stalling the round engine.
type Hub struct {
	clients    map[*Client]bool
	outbound   chan WSMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		outbound:   make(chan WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WS] Client connected: %s (total: %d)", client.playerID, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			h.mu.Unlock()
			log.Printf("[WS] Client disconnected: %s (total: %d)", client.playerID, h.ClientCount())

		case msg := <-h.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				go client.write(data)
			}
			h.mu.RUnlock()
		}
	}
}

// Publish implements Broadcaster.
func (h *Hub) Publish(event string, payload interface{}) {
	select {
	case h.outbound <- WSMessage{Type: event, Data: payload}:
	default:
		log.Printf("[WS] Outbound channel full, dropping %s", event)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn, playerID string) *Client {
	client := &Client{conn: conn, playerID: playerID}
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (c *Client) write(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[WS] Write error for player %s: %v", c.playerID, err)
	}
}

// Send delivers a message to this client only.
func (c *Client) Send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] Marshal error: %v", err)
		return
	}
	c.write(data)
}
