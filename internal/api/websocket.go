// Package api - WebSocket stream of status checks
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/alexbotov/wurmstatus/internal/domain"
	"github.com/alexbotov/wurmstatus/internal/logger"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSClient represents a WebSocket client connection
type WSClient struct {
	conn    *websocket.Conn
	send    chan []byte
	subject string
	mu      sync.Mutex
	closed  bool
}

// Hub fans status checks out to connected websocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*WSClient]struct{})}
}

func (hub *Hub) register(c *WSClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.clients[c] = struct{}{}
}

func (hub *Hub) unregister(c *WSClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.clients, c)
}

// ClientCount returns the number of connected clients
func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// Broadcast sends a check message to every client. Slow clients drop messages.
func (hub *Hub) Broadcast(check *domain.StatusCheck) {
	msg, err := encodeMessage("check", check)
	if err != nil {
		logger.Warn("Encode websocket message failed", "error", err)
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for c := range hub.clients {
		c.enqueue(msg)
	}
}

// HandleWebSocket handles GET /api/v1/ws/status
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	subject := ""
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		subject = claims.Subject
	}

	// Upgrade connection
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade error", "error", err)
		return
	}

	client := &WSClient{
		conn:    conn,
		send:    make(chan []byte, 256),
		subject: subject,
	}
	h.hub.register(client)

	// Start goroutines for reading and writing
	go client.writePump()
	go h.readPump(client)
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the handler
func (h *Handler) readPump(c *WSClient) {
	defer func() {
		h.hub.unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send welcome message with the last known check
	h.sendMessage(c, "connected", map[string]interface{}{
		"message":    "Connected to status stream",
		"subject":    c.subject,
		"last_check": h.monitor.Last(),
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket error", "error", err)
			}
			break
		}

		// Parse message
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}

		h.handleWSMessage(c, &msg)
	}
}

// handleWSMessage processes incoming WebSocket messages
func (h *Handler) handleWSMessage(c *WSClient, msg *WSMessage) {
	switch msg.Type {
	case "latest":
		h.sendMessage(c, "latest", h.monitor.Last())

	case "ping":
		h.sendMessage(c, "pong", map[string]interface{}{
			"timestamp": time.Now().Unix(),
		})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

func encodeMessage(msgType string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:    msgType,
		Payload: payloadBytes,
	})
}

// sendMessage sends a message to the client
func (h *Handler) sendMessage(c *WSClient, msgType string, payload interface{}) {
	msg, err := encodeMessage(msgType, payload)
	if err != nil {
		logger.Warn("Encode websocket message failed", "type", msgType, "error", err)
		return
	}
	c.enqueue(msg)
}

// sendError sends an error message to the client
func (h *Handler) sendError(c *WSClient, code, message string) {
	h.sendMessage(c, "error", map[string]string{
		"code":    code,
		"message": message,
	})
}

func (c *WSClient) enqueue(msg []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// Channel full, drop message
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
