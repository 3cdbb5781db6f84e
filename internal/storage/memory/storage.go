package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Values are copied in and out so callers never share memory with the store.
type Storage struct {
	mu sync.RWMutex

	users        map[string]*model.User
	sessionIndex map[model.SessionID]string
	queue        map[string]model.QueueEntry
	games        map[model.GameID]*model.Game
	lastGameID   model.GameID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users:        make(map[string]*model.User),
		sessionIndex: make(map[model.SessionID]string),
		queue:        make(map[string]model.QueueEntry),
		games:        make(map[model.GameID]*model.Game),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// User operations

func (s *Storage) FindUser(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (s *Storage) AddUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return model.ErrUserExists
	}
	u := *user
	s.users[user.Username] = &u
	return nil
}

func (s *Storage) UpdateRating(ctx context.Context, username string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return model.ErrUserNotFound
	}
	user.Rating = rating
	return nil
}

// Session operations

func (s *Storage) BindSession(ctx context.Context, username string, sessionID model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return model.ErrUserNotFound
	}
	if user.ActiveSessionID != "" {
		delete(s.sessionIndex, user.ActiveSessionID)
	}
	user.ActiveSessionID = sessionID
	s.sessionIndex[sessionID] = username
	return nil
}

func (s *Storage) FindSessionByUsername(ctx context.Context, username string) (model.SessionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[username]
	if !ok || user.ActiveSessionID == "" {
		return "", model.ErrSessionNotFound
	}
	return user.ActiveSessionID, nil
}

func (s *Storage) DeleteSession(ctx context.Context, sessionID model.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.sessionIndex[sessionID]
	if !ok {
		return nil
	}
	delete(s.sessionIndex, sessionID)
	if user, ok := s.users[username]; ok && user.ActiveSessionID == sessionID {
		user.ActiveSessionID = ""
	}
	return nil
}

// Queue operations

func (s *Storage) EnqueuePlayer(ctx context.Context, entry model.QueueEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queue[entry.Username]; ok {
		return false, nil
	}
	s.queue[entry.Username] = entry
	return true, nil
}

func (s *Storage) SnapshotQueue(ctx context.Context) ([]model.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]model.QueueEntry, 0, len(s.queue))
	for _, e := range s.queue {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].EnqueuedAt.Equal(entries[j].EnqueuedAt) {
			return entries[i].Username < entries[j].Username
		}
		return entries[i].EnqueuedAt.Before(entries[j].EnqueuedAt)
	})
	return entries, nil
}

func (s *Storage) RemoveFromQueue(ctx context.Context, usernames ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range usernames {
		delete(s.queue, u)
	}
	return nil
}

// Game operations

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) (model.GameID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGameID++
	g := *game
	g.ID = s.lastGameID
	s.games[g.ID] = &g
	return g.ID, nil
}

func (s *Storage) UpdateGamePosition(ctx context.Context, id model.GameID, position string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return model.ErrGameNotFound
	}
	game.Position = position
	return nil
}

func (s *Storage) FindGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	g := *game
	return &g, nil
}

func (s *Storage) CompleteGame(ctx context.Context, id model.GameID, winner model.Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return model.ErrGameNotFound
	}
	if game.Status == model.GameStatusCompleted {
		return model.ErrGameComplete
	}
	game.Status = model.GameStatusCompleted
	game.Winner = winner
	return nil
}

func (s *Storage) GamesInvolving(ctx context.Context, username string) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var games []*model.Game
	for _, game := range s.games {
		if game.White.Username == username || game.Black.Username == username {
			g := *game
			games = append(games, &g)
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (s *Storage) RemoveGame(ctx context.Context, id model.GameID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return nil
}

func (s *Storage) Close() error {
	return nil
}
