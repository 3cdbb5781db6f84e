package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
	"github.com/mcoot/chessgame-go/internal/storage/storagetest"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	mini := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.SessionTTL = time.Hour
	cfg.GameTTL = time.Hour

	return NewWithClient(client, cfg), mini
}

func TestStorageConformance(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			s, _ := newTestStorage(t)
			return s
		},
	})
}

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage, s.mini = newTestStorage(s.T())
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
}

func (s *StorageSuite) TestUserHasNoTTL() {
	err := s.storage.AddUser(s.ctx, &model.User{Username: "alice", PasswordHash: "h", Rating: 1200})
	s.Require().NoError(err)

	s.Equal(time.Duration(0), s.mini.TTL(userKey("alice")))
}

func (s *StorageSuite) TestSessionExpires() {
	err := s.storage.AddUser(s.ctx, &model.User{Username: "alice", PasswordHash: "h", Rating: 1200})
	s.Require().NoError(err)
	s.Require().NoError(s.storage.BindSession(s.ctx, "alice", "sess-1"))

	s.mini.FastForward(2 * time.Hour)

	_, err = s.storage.FindSessionByUsername(s.ctx, "alice")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *StorageSuite) TestGameTTLPreservedOnUpdate() {
	id, err := s.storage.CreateGame(s.ctx, &model.Game{
		White:    model.Participant{Username: "alice"},
		Black:    model.Participant{Username: "bob"},
		Position: "start",
		Status:   model.GameStatusOngoing,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.storage.UpdateGamePosition(s.ctx, id, "next"))

	s.Equal(time.Hour, s.mini.TTL(gameKey(id)))
	s.Equal(time.Hour, s.mini.TTL(gamesByUserIndexKey("alice")))
}

func (s *StorageSuite) TestGamesInvolvingSkipsExpiredGames() {
	id, err := s.storage.CreateGame(s.ctx, &model.Game{
		White:  model.Participant{Username: "alice"},
		Black:  model.Participant{Username: "bob"},
		Status: model.GameStatusOngoing,
	})
	s.Require().NoError(err)

	// Simulate the game key expiring ahead of the index
	s.mini.Del(gameKey(id))

	games, err := s.storage.GamesInvolving(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(games)
}

func (s *StorageSuite) TestOperationsFailWhenServerDown() {
	s.mini.Close()

	_, err := s.storage.FindUser(s.ctx, "alice")
	s.Error(err)
	s.NotErrorIs(err, model.ErrUserNotFound)
}
