package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/warp/workforce-engine/workforce"
)

// Hub streams events to websocket subscribers.
//
// Each subscriber gets a buffered queue. A subscriber that falls behind by
// more than the queue size is disconnected rather than slowing the tick
// loop down. Subscribers may pass ?topic=a,b to receive only those topics.
type Hub struct {
	log      *slog.Logger
	upgrader websocket.Upgrader
	queue    int

	mu      sync.RWMutex
	clients map[uint64]*client
	nextID  atomic.Uint64
}

type client struct {
	id     uint64
	topics map[string]bool
	out    chan []byte
	once   sync.Once
	done   chan struct{}
}

func (c *client) wants(topic string) bool {
	return len(c.topics) == 0 || c.topics[topic]
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log: logger.With("component", "telemetry.hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		queue:   256,
		clients: make(map[uint64]*client),
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues every event for every interested subscriber.
func (h *Hub) Publish(_ context.Context, events []workforce.Event) error {
	if len(events) == 0 {
		return nil
	}
	encoded := make([][]byte, len(events))
	for i, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s: %w", ev.Topic, err)
		}
		encoded[i] = b
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
clients:
	for _, c := range h.clients {
		for i, ev := range events {
			if !c.wants(ev.Topic) {
				continue
			}
			select {
			case <-c.done:
				continue clients
			case c.out <- encoded[i]:
			default:
				h.log.Warn("subscriber too slow, disconnecting", "client", c.id)
				c.close()
				continue clients
			}
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams events until the peer goes
// away or falls behind.
func (h *Hub) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{
		id:     h.nextID.Add(1),
		topics: parseTopics(r.URL.Query().Get("topic")),
		out:    make(chan []byte, h.queue),
		done:   make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)
	h.log.Info("subscriber connected", "client", c.id, "remote", r.RemoteAddr)

	// Reader: only used to notice the peer closing.
	go func() {
		defer c.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
			h.log.Info("subscriber disconnected", "client", c.id)
			return
		case b := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.log.Debug("write failed", "client", c.id, "err", err)
				return
			}
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

func parseTopics(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[t] = true
		}
	}
	return out
}

var _ Sink = (*Hub)(nil)
