package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Client is one websocket subscriber of the live feed. The feed is a
// convenience layer on top of polling; the polling gateway stays the
// authoritative surface.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	gameType  GameType // empty subscribes to every game type
	mu        sync.Mutex
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan interface{}
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan interface{}, 100),
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
			log.Printf("[WS] Client connected: %s (Total: %d)", client.sessionID, len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				log.Printf("[WS] Client disconnected: %s (Total: %d)", client.sessionID, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			jsonMessage, err := json.Marshal(message)
			if err != nil {
				log.Printf("[WS] Marshal error: %v", err)
				continue
			}

			gameType := messageGameType(message)
			h.mu.RLock()
			for client := range h.clients {
				if client.gameType != "" && gameType != "" && client.gameType != gameType {
					continue
				}
				go client.send(jsonMessage)
			}
			h.mu.RUnlock()
		}
	}
}

func messageGameType(message interface{}) GameType {
	if m, ok := message.(map[string]interface{}); ok {
		if gt, ok := m["game_type"].(GameType); ok {
			return gt
		}
	}
	return ""
}

func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		log.Println("[WS] Broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		log.Printf("[WS] Write error for session %s: %v", c.sessionID, err)
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, sessionID string, gameType GameType) {
	client := &Client{
		conn:      conn,
		sessionID: sessionID,
		gameType:  gameType,
	}
	h.register <- client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}
