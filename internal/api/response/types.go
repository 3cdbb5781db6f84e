// Package response holds the admin API's JSON bodies.
package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcoot/chessgame-go/internal/model"
)

// Player represents a registered user in API responses
type Player struct {
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Online    bool      `json:"online"`
	CreatedAt time.Time `json:"created_at"`
}

// PlayerFromModel converts a model.User to a response Player
func PlayerFromModel(u *model.User, online bool) Player {
	return Player{
		Username:  u.Username,
		Rating:    u.Rating,
		Online:    online,
		CreatedAt: u.CreatedAt,
	}
}

// Game represents a game in API responses
type Game struct {
	ID        int64     `json:"id"`
	White     string    `json:"white"`
	Black     string    `json:"black"`
	Board     string    `json:"board"`
	Status    string    `json:"status"`
	Winner    *string   `json:"winner"`
	CreatedAt time.Time `json:"created_at"`
}

// GameFromModel converts model.Game
func GameFromModel(g *model.Game) Game {
	var winner *string
	if g.Winner != model.WinnerNone {
		w := string(g.Winner)
		winner = &w
	}
	return Game{
		ID:        int64(g.ID),
		White:     g.White.Username,
		Black:     g.Black.Username,
		Board:     g.Position,
		Status:    string(g.Status),
		Winner:    winner,
		CreatedAt: g.CreatedAt,
	}
}

// GameList wraps a list of games
type GameList struct {
	Games []Game `json:"games"`
}

// GameListFromModel converts a slice of games
func GameListFromModel(games []*model.Game) GameList {
	list := make([]Game, len(games))
	for i, g := range games {
		list[i] = GameFromModel(g)
	}
	return GameList{Games: list}
}

// Stats is a snapshot of server activity
type Stats struct {
	Connections int `json:"connections"`
	Sessions    int `json:"sessions"`
	Queued      int `json:"queued"`
}

// Health is the body of the health check
type Health struct {
	Status string `json:"status"`
}

// JSON writes data as the JSON body of a response with the given status
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
