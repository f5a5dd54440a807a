// Package live pushes progress events to the signed-in user's open browser
// tabs over WebSocket, so every tab sees completions made in another.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/academy/internal/auth"
	"github.com/p-n-ai/academy/internal/progress"
)

const (
	defaultBuffer = 16
	writeTimeout  = 5 * time.Second
)

type subscriber struct {
	events chan progress.Event
}

// Hub fans progress events out to per-user subscribers. It implements
// progress.EventLogger.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	buffer  int
	origins []string
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets how many events a slow subscriber may lag behind before
// further events to it are dropped.
func WithBuffer(n int) Option {
	return func(h *Hub) { h.buffer = n }
}

// WithOriginPatterns allows cross-origin WebSocket clients, e.g. a
// front end served from another host.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber for userID. The returned cancel function
// unregisters it and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan progress.Event, func()) {
	s := &subscriber{events: make(chan progress.Event, h.buffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.events, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], s)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(s.events)
		})
	}
}

// LogEvent delivers event to the subscribers of event.UserID without
// blocking. A full subscriber misses the event.
func (h *Hub) LogEvent(event progress.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[event.UserID] {
		select {
		case s.events <- event:
		default:
			slog.Warn("live subscriber lagging, event dropped", "user_id", event.UserID, "type", event.Type)
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// ServeHTTP upgrades a signed-in request to a WebSocket and streams that
// user's events as JSON until either side closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, `{"error":"sign in required"}`, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "user_id", userID, "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.Subscribe(userID)
	defer cancel()

	// The feed is one-way; CloseRead handles pings and the close handshake.
	ctx := conn.CloseRead(r.Context())
	slog.Debug("live feed opened", "user_id", userID)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("live feed closed", "user_id", userID)
			return
		case ev := <-events:
			if err := writeEvent(ctx, conn, ev); err != nil {
				slog.Debug("live feed write failed", "user_id", userID, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev progress.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
