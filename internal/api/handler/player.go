package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/chessgame-go/internal/api/apierr"
	"github.com/mcoot/chessgame-go/internal/api/response"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	storage  storage.Storage
	registry *session.Registry
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(storage storage.Storage, registry *session.Registry) *PlayerHandler {
	return &PlayerHandler{
		storage:  storage,
		registry: registry,
	}
}

// Get handles GET /api/v1/players/{username}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	user, err := h.storage.FindUser(r.Context(), username)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	online := user.ActiveSessionID != "" && h.registry.IsLive(user.ActiveSessionID)
	response.JSON(w, http.StatusOK, response.PlayerFromModel(user, online))
}

// Games handles GET /api/v1/players/{username}/games
func (h *PlayerHandler) Games(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if _, err := h.storage.FindUser(r.Context(), username); err != nil {
		apierr.WriteError(w, err)
		return
	}

	games, err := h.storage.GamesInvolving(r.Context(), username)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.GameListFromModel(games))
}
