package storage

import (
	"context"

	"github.com/mcoot/chessgame-go/internal/model"
)

// Storage defines the interface for data persistence.
// Every operation is individually atomic; callers must not assume
// transactions spanning multiple calls.
type Storage interface {
	// User operations
	FindUser(ctx context.Context, username string) (*model.User, error)
	// AddUser stores a new user. Returns model.ErrUserExists if the username is taken.
	AddUser(ctx context.Context, user *model.User) error
	UpdateRating(ctx context.Context, username string, rating int) error

	// Session operations
	BindSession(ctx context.Context, username string, sessionID model.SessionID) error
	// FindSessionByUsername returns model.ErrSessionNotFound if the user has no session
	FindSessionByUsername(ctx context.Context, username string) (model.SessionID, error)
	// DeleteSession clears the session if it is still the user's active one
	DeleteSession(ctx context.Context, sessionID model.SessionID) error

	// Matchmaking queue operations
	// EnqueuePlayer adds an entry unless one exists for the username; reports whether it was added
	EnqueuePlayer(ctx context.Context, entry model.QueueEntry) (bool, error)
	// SnapshotQueue returns all entries ordered by enqueue time
	SnapshotQueue(ctx context.Context) ([]model.QueueEntry, error)
	RemoveFromQueue(ctx context.Context, usernames ...string) error

	// Game operations
	// CreateGame assigns the next game ID, stores the game and returns the ID
	CreateGame(ctx context.Context, game *model.Game) (model.GameID, error)
	UpdateGamePosition(ctx context.Context, id model.GameID, position string) error
	FindGame(ctx context.Context, id model.GameID) (*model.Game, error)
	CompleteGame(ctx context.Context, id model.GameID, winner model.Winner) error
	GamesInvolving(ctx context.Context, username string) ([]*model.Game, error)
	RemoveGame(ctx context.Context, id model.GameID) error

	// Close releases any resources held by the backend
	Close() error
}
