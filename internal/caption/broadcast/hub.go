// Package broadcast fans captions out to websocket clients, so overlays and
// browser pages can show the same captions as the terminal.
//
// Each client receives JSON text messages:
//
//	{"type":"interim","text":"hello wor","time":"2026-10-17T12:00:00Z"}
//	{"type":"final","text":"hello world","time":"2026-10-17T12:00:01Z"}
//
// A client that falls more than the buffer size behind is disconnected instead
// of slowing down the captioning loop.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/livecaptions/internal/observe"
)

const (
	defaultBuffer = 32
	writeTimeout  = 5 * time.Second
)

// Message types.
const (
	TypeInterim = "interim"
	TypeFinal   = "final"
)

// Message is one caption update as sent to clients.
type Message struct {
	Type string    `json:"type"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Option is a functional option for configuring a [Hub].
type Option func(*Hub)

// WithBuffer sets how many messages may queue per client before it is dropped.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithOriginPatterns allows cross-origin websocket connections from hosts
// matching the given patterns (see [websocket.AcceptOptions]).
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// WithMetrics sets the metrics instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

type client struct {
	send chan []byte
}

// Hub is an [http.Handler] that upgrades requests to websockets and a caption
// sink that publishes to every connected client. Safe for concurrent use.
type Hub struct {
	buffer  int
	origins []string
	log     *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub returns a [Hub] with no clients.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		buffer:  defaultBuffer,
		log:     slog.Default(),
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// ServeHTTP upgrades the request and streams captions until the client goes
// away, falls behind, or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Warn("broadcast: websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{send: make(chan []byte, h.buffer)}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.remove(c)
	h.log.Debug("broadcast: client connected", "remote", r.RemoteAddr)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer disconnects.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "too slow")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.log.Debug("broadcast: write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

// OnFinalCaption publishes a final caption. It never blocks and never fails.
func (h *Hub) OnFinalCaption(ctx context.Context, text string) error {
	return h.Publish(ctx, Message{Type: TypeFinal, Text: text, Time: h.now()})
}

// OnInterimCaption publishes an interim caption.
func (h *Hub) OnInterimCaption(ctx context.Context, text string) error {
	return h.Publish(ctx, Message{Type: TypeInterim, Text: text, Time: h.now()})
}

// Publish sends msg to every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("broadcast: encode message: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("broadcast: hub closed")
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropLocked(ctx, c)
			h.log.Warn("broadcast: dropped slow client")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(context.Background(), c)
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.BroadcastClients.Add(context.Background(), 1)
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.dropLocked(context.Background(), c)
	}
}

// dropLocked must be called with h.mu held and c registered.
func (h *Hub) dropLocked(ctx context.Context, c *client) {
	delete(h.clients, c)
	close(c.send)
	h.metrics.BroadcastClients.Add(ctx, -1)
}
