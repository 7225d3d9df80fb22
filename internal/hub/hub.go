package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/weiawesome/chat-relay/internal/config"
	"github.com/weiawesome/chat-relay/internal/domain"
	"github.com/weiawesome/chat-relay/pkg/log"
)

var (
	// ErrSendBufferFull is returned when a client is too slow to drain its
	// queue. The client is dropped.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrHubStopped is returned by Register once Run has exited.
	ErrHubStopped = errors.New("hub stopped")
)

// Hub tracks the WebSocket clients connected to this process, keyed by
// session id. It implements the engine's Gateway.
type Hub struct {
	clients    map[string]*Client // sessionID -> client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		config:     cfg,
	}
}

// Run owns registration until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok && old != client {
				close(old.send)
			}
			h.clients[client.ID] = client
			h.mu.Unlock()
			close(client.registered)
			l := log.L()
			l.Debug().Str(log.FieldSessionID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.ID]; ok && current == client {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldSessionID, client.ID).Msg("client unregistered")

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register blocks until the client is visible to Deliver.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		<-client.registered
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Deliver sends event to one locally connected session.
func (h *Hub) Deliver(sessionID string, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return domain.ErrSessionNotConnected
	}
	return h.send(client, data)
}

// DeliverToRoom sends event to each member connected to this process.
// Members without a local connection are skipped.
func (h *Hub) DeliverToRoom(room string, members []string, event *domain.Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldRoom, room).Msg("failed to encode room event")
		return 0
	}

	delivered := 0
	for _, sessionID := range members {
		h.mu.RLock()
		client, ok := h.clients[sessionID]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		if h.send(client, data) == nil {
			delivered++
		}
	}
	return delivered
}

// ClientCount returns how many sessions are connected locally.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// send queues data for client. The read lock keeps the channel from being
// closed underneath us.
func (h *Hub) send(client *Client, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[client.ID] != client {
		return domain.ErrSessionNotConnected
	}

	select {
	case client.send <- data:
		return nil
	default:
		l := log.L()
		l.Warn().Str(log.FieldSessionID, client.ID).Msg("send buffer full, dropping client")
		go h.Unregister(client)
		return ErrSendBufferFull
	}
}
