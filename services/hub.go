package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"avtotest/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Hub pushes result events to connected dashboards.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
	userID uuid.UUID
	role   models.Role
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client registered: %s (user %s, %s) - Total clients: %d", client.id, client.userID, client.role, total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client unregistered: %s (user %s) - Total clients: %d", client.id, client.userID, len(h.clients))
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastToUser sends a message to every connection of one user.
func (h *Hub) BroadcastToUser(userID uuid.UUID, messageType string, payload interface{}) int {
	return h.broadcast(messageType, payload, func(c *Client) bool {
		return c.userID == userID
	})
}

// BroadcastToRoles sends a message to every connection whose user has one of
// the given roles.
func (h *Hub) BroadcastToRoles(messageType string, payload interface{}, roles ...models.Role) int {
	return h.broadcast(messageType, payload, func(c *Client) bool {
		for _, role := range roles {
			if c.role == role {
				return true
			}
		}
		return false
	})
}

// NotifyResultStored announces a durably stored result to its owner and to
// staff dashboards.
func (h *Hub) NotifyResultStored(result *models.Result) {
	h.BroadcastToUser(result.UserID, "result_synced", map[string]interface{}{
		"result_id": result.ID,
		"ticket_id": result.TicketID,
		"score":     result.Score,
	})
	h.BroadcastToRoles("result_recorded", result, models.RoleAdmin, models.RoleTeacher)
}

func (h *Hub) ConnectedCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(messageType string, payload interface{}, match func(*Client) bool) int {
	data, err := json.Marshal(Message{Type: messageType, Payload: payload})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return 0
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			log.Printf("Client %s send buffer full, closing connection", client.id)
			close(client.send)
			delete(h.clients, client)
		}
	}
	return sent
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID uuid.UUID, role models.Role) *Client {
	client := &Client{
		hub:    h,
		id:     "client_" + uuid.NewString()[:8],
		socket: conn,
		send:   make(chan []byte, 256),
		userID: userID,
		role:   role,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: "pong", Payload: "pong"})
		c.hub.mutex.RLock()
		if c.hub.clients[c] {
			select {
			case c.send <- data:
			default:
			}
		}
		c.hub.mutex.RUnlock()

	default:
		log.Printf("Unknown message type: %s from user %s", msg.Type, c.userID)
	}
}
