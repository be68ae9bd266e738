package ws

import (
	"errors"
	"sync"

	"github.com/agora/backend/internal/infrastructure/logger"
	"github.com/gofiber/contrib/websocket"
)

var ErrNotConnected = errors.New("requester has no live connection")

// wsConn is the write surface the hub needs from a connection. Satisfied by
// *websocket.Conn.
type wsConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// client pairs a connection with its own write mutex so a slow socket only
// stalls its own writes, never the hub lock.
type client struct {
	conn wsConn
	mu   sync.Mutex
}

// Hub owns the live delivery connections, one per requester. It implements
// the engine's connection registry port; the engine only reads it,
// connection lifecycle stays here in the transport layer.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  log,
	}
}

func (h *Hub) register(requesterID string, conn wsConn) *client {
	cl := &client{conn: conn}
	h.mu.Lock()
	if old, ok := h.clients[requesterID]; ok && old.conn != conn {
		old.conn.Close()
	}
	h.clients[requesterID] = cl
	h.mu.Unlock()
	return cl
}

// unregister removes the client only if it is still the current one; a
// replacement registered in the meantime stays.
func (h *Hub) unregister(requesterID string, cl *client) {
	h.mu.Lock()
	if cur, ok := h.clients[requesterID]; ok && cur == cl {
		delete(h.clients, requesterID)
	}
	h.mu.Unlock()
}

// Handle runs the lifetime of one websocket connection. A newer connection
// from the same requester replaces the old one.
func (h *Hub) Handle(c *websocket.Conn) {
	requesterID := c.Params("requesterId")
	if requesterID == "" {
		c.Close()
		return
	}

	cl := h.register(requesterID, c)
	h.logger.Infow("ws_connected", "requester_id", requesterID)

	// Block on the read loop; inbound frames are ignored, the socket exists
	// for pushes and liveness only
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(requesterID, cl)
	h.logger.Infow("ws_disconnected", "requester_id", requesterID)
	c.Close()
}

func (h *Hub) IsLive(requesterID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[requesterID]
	return ok
}

func (h *Hub) PushTo(requesterID string, payload interface{}) error {
	h.mu.RLock()
	cl, ok := h.clients[requesterID]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	cl.mu.Lock()
	err := cl.conn.WriteJSON(payload)
	cl.mu.Unlock()
	if err != nil {
		// A dead socket is indistinguishable from a disconnect; drop it
		h.unregister(requesterID, cl)
		cl.conn.Close()
		return err
	}
	return nil
}
