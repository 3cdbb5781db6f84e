package handler

import (
	"net/http"

	"github.com/mcoot/chessgame-go/internal/api/response"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/session"
)

// ConnCounter reports how many client connections are open
type ConnCounter interface {
	ConnCount() int
}

// StatsHandler reports live server activity
type StatsHandler struct {
	conns    ConnCounter
	registry *session.Registry
	queue    *matchmaking.Queue
}

// NewStatsHandler creates a new stats handler. conns may be nil when no
// game server runs in this process.
func NewStatsHandler(conns ConnCounter, registry *session.Registry, queue *matchmaking.Queue) *StatsHandler {
	return &StatsHandler{conns: conns, registry: registry, queue: queue}
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	stats := response.Stats{
		Sessions: h.registry.Count(),
		Queued:   h.queue.Len(),
	}
	if h.conns != nil {
		stats.Connections = h.conns.ConnCount()
	}
	response.JSON(w, http.StatusOK, stats)
}
