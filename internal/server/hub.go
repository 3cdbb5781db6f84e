package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/protocol"
)

// Hub tracks every live connection so server-wide messages reach all of them
type Hub struct {
	clock  clock.Clock
	logger *slog.Logger

	conns map[*Conn]time.Time
	mu    sync.RWMutex

	register   chan *Conn
	unregister chan *Conn
	done       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub. Run must be started before connections register.
func NewHub(clock clock.Clock, logger *slog.Logger) *Hub {
	return &Hub{
		clock:      clock,
		logger:     logger.With(slog.String("component", "hub")),
		conns:      make(map[*Conn]time.Time),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Run is the hub's event loop. On Close every connection is sent
// server_shutdown and then closed.
func (h *Hub) Run() {
	defer close(h.stopped)
	h.logger.Info("hub started")
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.conns[conn] = h.clock.Now()
			count := len(h.conns)
			h.mu.Unlock()
			h.logger.Debug("connection registered",
				slog.String("conn_id", conn.ID()),
				slog.Int("total_connections", count))

		case conn := <-h.unregister:
			h.mu.Lock()
			if connectedAt, ok := h.conns[conn]; ok {
				delete(h.conns, conn)
				count := len(h.conns)
				h.mu.Unlock()
				h.logger.Debug("connection unregistered",
					slog.String("conn_id", conn.ID()),
					slog.Duration("connection_duration", clock.Since(h.clock, connectedAt)),
					slog.Int("total_connections", count))
			} else {
				h.mu.Unlock()
			}

		case <-h.done:
			h.mu.Lock()
			count := len(h.conns)
			for conn := range h.conns {
				_ = conn.Send(protocol.ServerShutdown{})
				conn.Close()
				delete(h.conns, conn)
			}
			h.mu.Unlock()
			h.logger.Info("hub stopped", slog.Int("disconnected_connections", count))
			return
		}
	}
}

// Register adds a connection. It reports false once the hub has stopped,
// in which case the caller should close the connection itself.
func (h *Hub) Register(conn *Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Conn) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Close stops the hub and waits until every connection has been told
// about the shutdown
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// ConnCount returns the number of registered connections
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
