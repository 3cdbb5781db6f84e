package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/chessgame-go/internal/api/apierr"
	"github.com/mcoot/chessgame-go/internal/api/handler"
	"github.com/mcoot/chessgame-go/internal/api/middleware"
	"github.com/mcoot/chessgame-go/internal/api/response"
	"github.com/mcoot/chessgame-go/internal/metrics"
	rootmiddleware "github.com/mcoot/chessgame-go/internal/middleware"
	"github.com/mcoot/chessgame-go/internal/services/game"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// RouterConfig holds configuration for the admin API router
type RouterConfig struct {
	Logger         *slog.Logger
	Storage        storage.Storage
	Registry       *session.Registry
	Queue          *matchmaking.Queue
	GameController *game.Controller
	// Conns reports open game connections (optional)
	Conns handler.ConnCounter
	// AdminToken guards the player, game and stats routes when set
	AdminToken string
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(apierr.RouteNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(apierr.MethodNotAllowed)

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.Storage, cfg.Registry)
	gameHandler := handler.NewGameHandler(cfg.GameController)
	statsHandler := handler.NewStatsHandler(cfg.Conns, cfg.Registry, cfg.Queue)

	// Create middleware
	adminMiddleware := middleware.AdminToken(cfg.AdminToken)
	loggingMiddleware := rootmiddleware.Logging(cfg.Logger)
	recoveryMiddleware := rootmiddleware.Recovery(cfg.Logger, apierr.WritePanic)
	metricsMiddleware := metrics.Middleware(routeTemplate)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(metricsMiddleware)

	// Prometheus scrape endpoint
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Admin routes
	admin := func(h http.HandlerFunc) http.Handler { return adminMiddleware(h) }
	api.Handle("/players/{username}", admin(playerHandler.Get)).Methods(http.MethodGet)
	api.Handle("/players/{username}/games", admin(playerHandler.Games)).Methods(http.MethodGet)
	api.Handle("/games/{id:[0-9]+}", admin(gameHandler.Get)).Methods(http.MethodGet)
	api.Handle("/stats", admin(statsHandler.Get)).Methods(http.MethodGet)

	return r
}

// routeTemplate labels metrics by route pattern instead of raw path
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
