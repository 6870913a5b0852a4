package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/miroirapp/miroir/internal/presence"
)

// ErrStaleHandle is returned by Push when the handle no longer maps to a
// live connection on this instance.
var ErrStaleHandle = errors.New("connection handle is stale")

// Envelope is the typed JSON frame pushed to clients.
type Envelope struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Hub owns the live websocket connections of this instance and implements
// the chat pipeline's Pusher. A Redis pub/sub bridge on user:<id> channels
// forwards pushes to connections held by other instances.
type Hub struct {
	rdb      *redis.Client // nil disables the bridge
	pubsub   *redis.PubSub // subscriptions of locally connected users
	registry *presence.Registry
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client // handle id -> client
	byUser  map[uint64]map[*Client]bool
}

// NewHub creates the hub and, when rdb is set, starts the pub/sub bridge.
func NewHub(rdb *redis.Client, registry *presence.Registry, logger *slog.Logger) *Hub {
	h := &Hub{
		rdb:      rdb,
		registry: registry,
		logger:   logger,
		clients:  make(map[string]*Client),
		byUser:   make(map[uint64]map[*Client]bool),
	}
	if rdb != nil {
		h.pubsub = rdb.Subscribe(context.Background())
		go h.bridge()
	}
	return h
}

func userChannel(userID uint64) string {
	return fmt.Sprintf("user:%d", userID)
}

// bridge replays pushes published by other instances onto local
// connections of the targeted user. The hub subscribes only to channels
// of users it currently holds, so the publisher's receiver count tells
// it whether anyone is listening.
func (h *Hub) bridge() {
	for msg := range h.pubsub.Channel() {
		id, ok := strings.CutPrefix(msg.Channel, "user:")
		if !ok {
			continue
		}
		userID, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			continue
		}
		h.sendToUser(userID, []byte(msg.Payload))
	}
}

// RegisterClient attaches an upgraded connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.handle.ID] = c
	if _, ok := h.byUser[c.handle.UserID]; !ok {
		h.byUser[c.handle.UserID] = make(map[*Client]bool)
		if h.pubsub != nil {
			_ = h.pubsub.Subscribe(context.Background(), userChannel(c.handle.UserID))
		}
	}
	h.byUser[c.handle.UserID][c] = true
	h.logger.Debug("client registered", "user", c.handle.UserID, "handle", c.handle.ID)
}

// UnregisterClient detaches a connection and releases its presence entry.
// Safe to call more than once per client.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop removes the client under h.mu. The send channel is never closed;
// the read pump may still be queueing replies on it. Closing done tells
// the write pump to finish instead.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c.handle.ID]; !ok {
		return
	}
	delete(h.clients, c.handle.ID)
	if set, ok := h.byUser[c.handle.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.byUser, c.handle.UserID)
			if h.pubsub != nil {
				_ = h.pubsub.Unsubscribe(context.Background(), userChannel(c.handle.UserID))
			}
		}
	}
	h.registry.Disconnect(c.handle)
	close(c.done)
	h.logger.Debug("client unregistered", "user", c.handle.UserID, "handle", c.handle.ID)
}

func (h *Hub) sendToUser(userID uint64, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.byUser[userID] {
		select {
		case c.send <- payload:
		default:
			// writer stalled; cut the connection rather than block
			h.drop(c)
		}
	}
}

// Push implements chat.Pusher. A handle held by this instance gets the
// payload on its writer queue; an unknown handle is forwarded through the
// Redis bridge when available, otherwise reported stale.
func (h *Hub) Push(ctx context.Context, handle presence.Handle, eventType string, payload map[string]any) error {
	data, err := json.Marshal(Envelope{Type: eventType, Payload: payload})
	if err != nil {
		return err
	}

	h.mu.Lock()
	c, ok := h.clients[handle.ID]
	if ok {
		select {
		case c.send <- data:
			h.mu.Unlock()
			return nil
		default:
			h.drop(c)
			h.mu.Unlock()
			return ErrStaleHandle
		}
	}
	h.mu.Unlock()

	if h.rdb != nil {
		// a receiver count of zero means no instance holds the user
		n, err := h.rdb.Publish(ctx, userChannel(handle.UserID), data).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrStaleHandle
		}
		return nil
	}
	return ErrStaleHandle
}
