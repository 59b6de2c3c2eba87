package site

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is a server sent event.
type Event struct {
	ID    string
	Event string
	Data  any
}

type client struct {
	id     string
	events chan Event
}

// Hub fans events out to connected SSE clients. Every client is written to
// only by its own handler goroutine.
type Hub struct {
	logger    *zap.Logger
	keepalive time.Duration
	buffer    int

	clientsMutex sync.RWMutex
	clients      map[string]*client
	nextClientID int

	done      chan struct{}
	closeOnce sync.Once
}

type HubOption func(h *Hub)

func WithKeepalive(interval time.Duration) HubOption {
	return func(h *Hub) {
		h.keepalive = interval
	}
}

// WithBufferSize sets how many events a slow client may lag behind before
// events are dropped for it.
func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		h.buffer = size
	}
}

func NewHub(logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		logger:    logger,
		keepalive: 30 * time.Second,
		buffer:    16,
		clients:   make(map[string]*client),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Broadcast queues event for every connected client.
func (h *Hub) Broadcast(event Event) {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	for _, c := range h.clients {
		select {
		case c.events <- event:
		default:
			h.logger.Warn("client buffer full, dropping event", zap.String("clientID", c.id), zap.String("event", event.Event))
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) addClient() *client {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	h.nextClientID++
	c := &client{
		id:     fmt.Sprintf("client_%d_%d", time.Now().Unix(), h.nextClientID),
		events: make(chan Event, h.buffer),
	}
	h.clients[c.id] = c
	return c
}

func (h *Hub) removeClient(id string) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.logger.Info("SSE client disconnected", zap.String("clientID", id))
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	select {
	case <-h.done:
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c := h.addClient()
	defer h.removeClient(c.id)

	connected := Event{
		ID:    fmt.Sprintf("connect_%d", time.Now().UnixNano()),
		Event: "connected",
		Data:  map[string]string{"clientID": c.id},
	}
	if err := writeEvent(w, connected); err != nil {
		h.logger.Error("failed to send connection event", zap.String("clientID", c.id), zap.Error(err))
		return
	}
	flusher.Flush()
	h.logger.Info("SSE client connected", zap.String("clientID", c.id))

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case event := <-c.events:
			if err := writeEvent(w, event); err != nil {
				h.logger.Error("failed to send event to client", zap.String("clientID", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Event, data)
	return err
}
