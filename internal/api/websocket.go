package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chaiyopos/print-engine/internal/transport"
	"github.com/chaiyopos/print-engine/pkg/receipt"
)

// WebSocket message types
const (
	EventPrint           = "print"
	EventConnectionState = "connection_state"
	EventResponse        = "response"
	EventError           = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan WSMessage
	server *Server
	mu     sync.Mutex
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan WSMessage, 256),
		server: s,
	}

	s.log.Info("websocket client connected")

	// Start goroutines
	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()

		if err != nil {
			c.server.log.Error("websocket write failed", "error", err)
			return
		}
	}
}

func (c *WSClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

func (c *WSClient) handlePrintEvent(data map[string]interface{}) {
	var r *receipt.Receipt

	if receiptData, ok := data["receipt"]; ok {
		receiptBytes, _ := json.Marshal(receiptData)
		parsed, err := receipt.Parse(receiptBytes)
		if err != nil {
			c.sendError(fmt.Sprintf("invalid receipt: %v", err))
			return
		}
		r = parsed
	} else {
		c.sendError("receipt is required")
		return
	}

	if err := receipt.Validate(r); err != nil {
		c.sendError(fmt.Sprintf("receipt validation failed: %v", err))
		return
	}

	printer, mode := c.server.activePrinter()
	printID := uuid.New().String()

	if err := printer.Print(context.Background(), r); err != nil {
		c.server.log.Error("print failed", "print_id", printID, "error", err)
		c.send <- WSMessage{
			Event: EventError,
			Data: map[string]interface{}{
				"error":    err.Error(),
				"message":  transport.UserMessage(err),
				"print_id": printID,
			},
		}
		return
	}

	c.sendResponse(map[string]interface{}{
		"success":  true,
		"print_id": printID,
		"mode":     mode,
	})
}

func (c *WSClient) sendResponse(data map[string]interface{}) {
	c.send <- WSMessage{
		Event: EventResponse,
		Data:  data,
	}
}

// Client tracking for broadcasts
var (
	clients   = make(map[*WSClient]bool)
	clientsMu sync.RWMutex
)

func addClient(client *WSClient) {
	clientsMu.Lock()
	clients[client] = true
	clientsMu.Unlock()
}

func removeClient(client *WSClient) {
	clientsMu.Lock()
	delete(clients, client)
	clientsMu.Unlock()
}

func (c *WSClient) readPump() {
	defer func() {
		// Unregister before closing the channel: broadcasters hold the
		// client-set lock while sending, so once removal returns nothing
		// can write to c.send and closing it releases writePump.
		removeClient(c)
		close(c.send)
		c.conn.Close()
		c.server.log.Info("websocket client disconnected")
	}()

	addClient(c)

	for {
		var msg WSMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Error("websocket read failed", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

func (c *WSClient) sendError(message string) {
	c.send <- WSMessage{
		Event: EventError,
		Data: map[string]interface{}{
			"error": message,
		},
	}
}

// BroadcastConnectionState pushes a transport state change to all
// connected clients.
func (s *Server) BroadcastConnectionState(mode string, connected bool) {
	clientsMu.RLock()
	defer clientsMu.RUnlock()

	message := WSMessage{
		Event: EventConnectionState,
		Data: map[string]interface{}{
			"mode":      mode,
			"connected": connected,
		},
	}

	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}
