// Package stream pushes engine status updates to websocket clients
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mrcode/nightscout-engine/internal/logger"
)

// Message types
const (
	TypeStatus = "status"
	TypeError  = "error"
)

// Message is the envelope every frame carries
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *slog.Logger

	mu   sync.RWMutex
	last []byte // replayed to new clients
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.With("component", "stream"),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.Debug("client registered", "remote", client.remote())
			if last := h.Last(); last != nil {
				client.trySend(last)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("client unregistered", "remote", client.remote())
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.trySend(message) {
					h.log.Warn("client send buffer full, removing", "remote", client.remote())
					delete(h.clients, client)
					close(client.send)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Publish broadcasts a status update
func (h *Hub) Publish(payload any) {
	h.publish(TypeStatus, payload)
}

// PublishError broadcasts an evaluation failure
func (h *Hub) PublishError(err error) {
	h.publish(TypeError, err.Error())
}

func (h *Hub) publish(kind string, payload any) {
	data, err := json.Marshal(Message{Type: kind, Payload: payload})
	if err != nil {
		h.log.Error("marshal broadcast", "type", kind, "error", err)
		return
	}
	if kind == TypeStatus {
		h.mu.Lock()
		h.last = data
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast queue full, dropping update", "type", kind)
	}
}

// Last returns the most recent status frame
func (h *Hub) Last() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}
