package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"message-relay/internal/models"
	"message-relay/internal/observability"
)

var (
	ErrConnGone       = errors.New("connection gone")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Hub maintains the live websocket clients by connection id and pushes events to them.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	logger  *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Add registers a client under its connection id.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.info.ConnID] = c
}

// Remove drops a client and closes its send queue.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	c, ok := h.clients[connID]
	delete(h.clients, connID)
	h.mu.Unlock()
	if ok {
		c.closeSend()
	}
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// Push queues event for the connection. A client whose queue is full is considered dead and closed.
func (h *Hub) Push(ctx context.Context, connID string, event models.ServerEvent) error {
	c, ok := h.client(connID)
	if !ok {
		return ErrConnGone
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = c.enqueue(payload)
	if errors.Is(err, ErrSendBufferFull) {
		h.logger.Warnw("closing slow websocket client", "conn_id", connID)
		h.publishWSError(ctx, c, err)
		c.closeConn()
	}
	return err
}

func (h *Hub) publishWSError(ctx context.Context, c *Client, err error) {
	info := c.info
	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(ctx, observability.WSEventsRoutingKey,
		observability.WSEvent("ws_error", info.ConnID, c.userID(), info.DeviceID, info.IP, err.Error(), info.ConnectedAt),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
