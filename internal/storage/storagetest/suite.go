// Package storagetest provides a conformance suite run against every
// storage backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// Suite exercises the storage.Storage contract
type Suite struct {
	suite.Suite

	// NewStorage returns a fresh, empty backend for each test
	NewStorage func(t *testing.T) storage.Storage

	Store storage.Storage
	Ctx   context.Context
}

var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage(s.T())
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Store != nil {
		_ = s.Store.Close()
	}
}

func (s *Suite) addUser(username string, rating int) {
	err := s.Store.AddUser(s.Ctx, &model.User{
		Username:     username,
		PasswordHash: "hash-" + username,
		Rating:       rating,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	})
	s.Require().NoError(err)
}

func (s *Suite) newGame(white, black string) *model.Game {
	return &model.Game{
		White:     model.Participant{Username: white, SessionID: model.SessionID("sess-" + white)},
		Black:     model.Participant{Username: black, SessionID: model.SessionID("sess-" + black)},
		Position:  "start",
		Status:    model.GameStatusOngoing,
		CreatedAt: baseTime,
	}
}

// User tests

func (s *Suite) TestAddAndFindUser() {
	s.addUser("alice", 1200)

	user, err := s.Store.FindUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("alice", user.Username)
	s.Equal("hash-alice", user.PasswordHash)
	s.Equal(1200, user.Rating)
	s.Empty(user.ActiveSessionID)
}

func (s *Suite) TestFindUserNotFound() {
	_, err := s.Store.FindUser(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestAddUserRejectsDuplicate() {
	s.addUser("alice", 1200)

	err := s.Store.AddUser(s.Ctx, &model.User{Username: "alice", PasswordHash: "other", Rating: 1500})
	s.ErrorIs(err, model.ErrUserExists)

	user, err := s.Store.FindUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal("hash-alice", user.PasswordHash)
	s.Equal(1200, user.Rating)
}

func (s *Suite) TestUpdateRating() {
	s.addUser("alice", 1200)

	s.Require().NoError(s.Store.UpdateRating(s.Ctx, "alice", 1216))

	user, err := s.Store.FindUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1216, user.Rating)
}

func (s *Suite) TestUpdateRatingUnknownUser() {
	err := s.Store.UpdateRating(s.Ctx, "nobody", 1300)
	s.ErrorIs(err, model.ErrUserNotFound)
}

// Session tests

func (s *Suite) TestBindAndFindSession() {
	s.addUser("alice", 1200)

	s.Require().NoError(s.Store.BindSession(s.Ctx, "alice", "sess-1"))

	sid, err := s.Store.FindSessionByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.SessionID("sess-1"), sid)

	user, err := s.Store.FindUser(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.SessionID("sess-1"), user.ActiveSessionID)
}

func (s *Suite) TestFindSessionWithoutLogin() {
	s.addUser("alice", 1200)

	_, err := s.Store.FindSessionByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrSessionNotFound)

	_, err = s.Store.FindSessionByUsername(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestBindSessionUnknownUser() {
	err := s.Store.BindSession(s.Ctx, "nobody", "sess-1")
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *Suite) TestBindSessionReplacesPrevious() {
	s.addUser("alice", 1200)
	s.Require().NoError(s.Store.BindSession(s.Ctx, "alice", "sess-1"))
	s.Require().NoError(s.Store.BindSession(s.Ctx, "alice", "sess-2"))

	sid, err := s.Store.FindSessionByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.SessionID("sess-2"), sid)
}

func (s *Suite) TestDeleteSession() {
	s.addUser("alice", 1200)
	s.Require().NoError(s.Store.BindSession(s.Ctx, "alice", "sess-1"))

	s.Require().NoError(s.Store.DeleteSession(s.Ctx, "sess-1"))

	_, err := s.Store.FindSessionByUsername(s.Ctx, "alice")
	s.ErrorIs(err, model.ErrSessionNotFound)
}

func (s *Suite) TestDeleteStaleSessionKeepsCurrent() {
	s.addUser("alice", 1200)
	s.Require().NoError(s.Store.BindSession(s.Ctx, "alice", "sess-1"))
	s.Require().NoError(s.Store.BindSession(s.Ctx, "alice", "sess-2"))

	s.Require().NoError(s.Store.DeleteSession(s.Ctx, "sess-1"))

	sid, err := s.Store.FindSessionByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.SessionID("sess-2"), sid)
}

func (s *Suite) TestDeleteUnknownSessionIsNoop() {
	s.NoError(s.Store.DeleteSession(s.Ctx, "never-issued"))
}

// Queue tests

func (s *Suite) TestEnqueueIsIdempotentPerUsername() {
	entry := model.QueueEntry{Username: "alice", SessionID: "sess-a", Rating: 1200, EnqueuedAt: baseTime}

	added, err := s.Store.EnqueuePlayer(s.Ctx, entry)
	s.Require().NoError(err)
	s.True(added)

	entry.SessionID = "sess-b"
	added, err = s.Store.EnqueuePlayer(s.Ctx, entry)
	s.Require().NoError(err)
	s.False(added)

	queue, err := s.Store.SnapshotQueue(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal(model.SessionID("sess-a"), queue[0].SessionID)
}

func (s *Suite) TestSnapshotQueueOrderedByEnqueueTime() {
	entries := []model.QueueEntry{
		{Username: "carol", SessionID: "sc", Rating: 1300, EnqueuedAt: baseTime.Add(2 * time.Second)},
		{Username: "alice", SessionID: "sa", Rating: 1200, EnqueuedAt: baseTime},
		{Username: "bob", SessionID: "sb", Rating: 1250, EnqueuedAt: baseTime.Add(time.Second)},
	}
	for _, e := range entries {
		_, err := s.Store.EnqueuePlayer(s.Ctx, e)
		s.Require().NoError(err)
	}

	queue, err := s.Store.SnapshotQueue(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(queue, 3)
	s.Equal("alice", queue[0].Username)
	s.Equal("bob", queue[1].Username)
	s.Equal("carol", queue[2].Username)
	s.Equal(1250, queue[1].Rating)
	s.Equal(model.SessionID("sb"), queue[1].SessionID)
	s.WithinDuration(baseTime.Add(time.Second), queue[1].EnqueuedAt, time.Millisecond)
}

func (s *Suite) TestSnapshotEmptyQueue() {
	queue, err := s.Store.SnapshotQueue(s.Ctx)
	s.Require().NoError(err)
	s.Empty(queue)
}

func (s *Suite) TestRemoveFromQueue() {
	for _, name := range []string{"alice", "bob", "carol"} {
		_, err := s.Store.EnqueuePlayer(s.Ctx, model.QueueEntry{Username: name, Rating: 1200, EnqueuedAt: baseTime})
		s.Require().NoError(err)
	}

	s.Require().NoError(s.Store.RemoveFromQueue(s.Ctx, "alice", "carol"))
	// Removing an absent entry is not an error
	s.Require().NoError(s.Store.RemoveFromQueue(s.Ctx, "alice"))

	queue, err := s.Store.SnapshotQueue(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal("bob", queue[0].Username)
}

// Game tests

func (s *Suite) TestCreateAndFindGame() {
	id, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)
	s.Positive(int64(id))

	game, err := s.Store.FindGame(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(id, game.ID)
	s.Equal("alice", game.White.Username)
	s.Equal(model.SessionID("sess-alice"), game.White.SessionID)
	s.Equal("bob", game.Black.Username)
	s.Equal(model.SessionID("sess-bob"), game.Black.SessionID)
	s.Equal("start", game.Position)
	s.Equal(model.GameStatusOngoing, game.Status)
	s.Equal(model.WinnerNone, game.Winner)
}

func (s *Suite) TestGameIDsStrictlyIncreaseAndAreNotReused() {
	first, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)
	second, err := s.Store.CreateGame(s.Ctx, s.newGame("carol", "dave"))
	s.Require().NoError(err)
	s.Greater(second, first)

	s.Require().NoError(s.Store.RemoveGame(s.Ctx, second))

	third, err := s.Store.CreateGame(s.Ctx, s.newGame("erin", "frank"))
	s.Require().NoError(err)
	s.Greater(third, second)
}

func (s *Suite) TestFindGameNotFound() {
	_, err := s.Store.FindGame(s.Ctx, 9999)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestUpdateGamePosition() {
	id, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)

	s.Require().NoError(s.Store.UpdateGamePosition(s.Ctx, id, "after-e4"))

	game, err := s.Store.FindGame(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal("after-e4", game.Position)
}

func (s *Suite) TestUpdateGamePositionNotFound() {
	err := s.Store.UpdateGamePosition(s.Ctx, 9999, "x")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestCompleteGame() {
	id, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)

	s.Require().NoError(s.Store.CompleteGame(s.Ctx, id, model.WinnerBlack))

	game, err := s.Store.FindGame(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(model.GameStatusCompleted, game.Status)
	s.Equal(model.WinnerBlack, game.Winner)
}

func (s *Suite) TestCompleteGameOnlyOnce() {
	id, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)
	s.Require().NoError(s.Store.CompleteGame(s.Ctx, id, model.WinnerDraw))

	err = s.Store.CompleteGame(s.Ctx, id, model.WinnerWhite)
	s.ErrorIs(err, model.ErrGameComplete)

	game, err := s.Store.FindGame(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(model.WinnerDraw, game.Winner)
}

func (s *Suite) TestCompleteGameNotFound() {
	err := s.Store.CompleteGame(s.Ctx, 9999, model.WinnerWhite)
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestGamesInvolving() {
	g1, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)
	_, err = s.Store.CreateGame(s.Ctx, s.newGame("carol", "dave"))
	s.Require().NoError(err)
	g3, err := s.Store.CreateGame(s.Ctx, s.newGame("erin", "alice"))
	s.Require().NoError(err)

	games, err := s.Store.GamesInvolving(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(games, 2)
	s.Equal(g1, games[0].ID)
	s.Equal(g3, games[1].ID)

	games, err = s.Store.GamesInvolving(s.Ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(games)
}

func (s *Suite) TestRemoveGame() {
	id, err := s.Store.CreateGame(s.Ctx, s.newGame("alice", "bob"))
	s.Require().NoError(err)

	s.Require().NoError(s.Store.RemoveGame(s.Ctx, id))
	// Removing twice is not an error
	s.Require().NoError(s.Store.RemoveGame(s.Ctx, id))

	_, err = s.Store.FindGame(s.Ctx, id)
	s.ErrorIs(err, model.ErrGameNotFound)

	games, err := s.Store.GamesInvolving(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Empty(games)
}
