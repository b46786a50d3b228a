package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cloudrecess/xiansim/pkg/eventlog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from arbitrary dev origins; events are read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans accepted events out to connected websocket clients. Slow clients
// are dropped rather than allowed to stall the simulation.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan eventlog.Event
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan eventlog.Event)}
}

// Broadcast queues the event for every client. Never blocks.
func (h *Hub) Broadcast(ev eventlog.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(h.conns, conn)
			_ = conn.Close()
		}
	}
}

// Handle upgrades the request and streams events until the client leaves.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan eventlog.Event, 64)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()

	// Reader goroutine notices the client closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		if _, ok := h.conns[conn]; ok {
			delete(h.conns, conn)
			close(ch)
		}
		h.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
