package sql

import (
	"time"

	"github.com/mcoot/chessgame-go/internal/model"
)

// userRecord is the users table row
type userRecord struct {
	Username        string `gorm:"primaryKey"`
	PasswordHash    string `gorm:"not null"`
	Rating          int    `gorm:"not null"`
	ActiveSessionID string `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (userRecord) TableName() string { return "users" }

func (r *userRecord) toModel() *model.User {
	return &model.User{
		Username:        r.Username,
		PasswordHash:    r.PasswordHash,
		Rating:          r.Rating,
		ActiveSessionID: model.SessionID(r.ActiveSessionID),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// queueRecord is a matchmaking_queue row, one per waiting username
type queueRecord struct {
	Username   string    `gorm:"primaryKey"`
	SessionID  string    `gorm:"not null"`
	Rating     int       `gorm:"not null"`
	EnqueuedAt time.Time `gorm:"index"`
}

func (queueRecord) TableName() string { return "matchmaking_queue" }

func (r *queueRecord) toModel() model.QueueEntry {
	return model.QueueEntry{
		Username:   r.Username,
		SessionID:  model.SessionID(r.SessionID),
		Rating:     r.Rating,
		EnqueuedAt: r.EnqueuedAt,
	}
}

// gameRecord is the games table row. IDs come from an autoincrement
// column so a removed game's ID is never handed out again.
type gameRecord struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	WhiteUsername  string `gorm:"index;not null"`
	WhiteSessionID string `gorm:"not null"`
	BlackUsername  string `gorm:"index;not null"`
	BlackSessionID string `gorm:"not null"`
	Position       string `gorm:"not null"`
	Status         string `gorm:"not null"`
	Winner         string
	CreatedAt      time.Time
}

func (gameRecord) TableName() string { return "games" }

func newGameRecord(g *model.Game) *gameRecord {
	return &gameRecord{
		WhiteUsername:  g.White.Username,
		WhiteSessionID: string(g.White.SessionID),
		BlackUsername:  g.Black.Username,
		BlackSessionID: string(g.Black.SessionID),
		Position:       g.Position,
		Status:         string(g.Status),
		Winner:         string(g.Winner),
		CreatedAt:      g.CreatedAt,
	}
}

func (r *gameRecord) toModel() *model.Game {
	return &model.Game{
		ID:        model.GameID(r.ID),
		White:     model.Participant{Username: r.WhiteUsername, SessionID: model.SessionID(r.WhiteSessionID)},
		Black:     model.Participant{Username: r.BlackUsername, SessionID: model.SessionID(r.BlackSessionID)},
		Position:  r.Position,
		Status:    model.GameStatus(r.Status),
		Winner:    model.Winner(r.Winner),
		CreatedAt: r.CreatedAt,
	}
}
