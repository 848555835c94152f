package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gaze/internal/protocol"
)

// client serialises writes to one WebSocket connection
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return c.write(data)
}

// hub tracks the WebSocket clients of one endpoint
type hub struct {
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func newHub(name string, logger *slog.Logger) *hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &hub{
		name:    name,
		logger:  logger,
		clients: make(map[*websocket.Conn]*client),
	}
}

func (h *hub) add(conn *websocket.Conn) *client {
	cl := &client{conn: conn}

	h.mu.Lock()
	h.clients[conn] = cl
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		"hub", h.name,
		"remote_addr", conn.RemoteAddr().String(),
		"clients", count,
	)
	return cl
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("websocket client disconnected",
		"hub", h.name,
		"remote_addr", conn.RemoteAddr().String(),
		"clients", count,
	)
}

func (h *hub) broadcast(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("websocket marshal error", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, cl := range h.clients {
		if err := cl.write(data); err != nil {
			// Will be cleaned up when connection closes
			h.logger.Debug("websocket write error", "hub", h.name, "error", err)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]*client)
	h.mu.Unlock()
}

// upgrade wraps handler in a WebSocket upgrade check
func upgrade(handler func(*websocket.Conn), hint string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return websocket.New(handler)(c)
		}

		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{
			"error":   "WebSocket upgrade required",
			"message": hint,
		})
	}
}

func pong() *protocol.Message {
	msg, _ := protocol.NewMessage(protocol.TypePong, nil)
	return msg
}
