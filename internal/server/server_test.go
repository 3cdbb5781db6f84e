package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/chessgame-go/internal/dependencies/mocks"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/rules"
	"github.com/mcoot/chessgame-go/internal/services/auth"
	"github.com/mcoot/chessgame-go/internal/services/game"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage/memory"
	"github.com/mcoot/chessgame-go/internal/testutil"
)

const readTimeout = 3 * time.Second

type testClient struct {
	s    *ServerSuite
	conn net.Conn

	username string
	token    string
}

func (c *testClient) send(msg protocol.Message) {
	c.s.Require().NoError(protocol.WriteMessage(c.conn, msg))
}

func (c *testClient) sendRaw(payload string) {
	c.s.Require().NoError(protocol.WriteFrame(c.conn, []byte(payload)))
}

func (c *testClient) read() protocol.Message {
	c.s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
	msg, err := protocol.ReadMessage(c.conn, protocol.DefaultMaxFrameSize)
	c.s.Require().NoError(err)
	return msg
}

func (c *testClient) expectError(reason string) {
	c.s.Equal(protocol.Error{Reason: reason}, c.read())
}

func (c *testClient) auth() protocol.Auth {
	return protocol.Auth{Username: c.username, Token: c.token}
}

type ServerSuite struct {
	suite.Suite
	ctx      context.Context
	storage  *memory.Storage
	random   *mocks.MockRandom
	registry *session.Registry
	queue    *matchmaking.Queue
	server   *Server
	serveErr chan error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.ctx = context.Background()
	logger := testutil.NopLogger()
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	s.registry = session.NewRegistry(clock, logger)

	authCfg := auth.DefaultConfig()
	authCfg.BcryptCost = bcrypt.MinCost
	authService, err := auth.New(s.storage, s.registry, clock, s.random, authCfg, logger)
	s.Require().NoError(err)

	queueCfg := matchmaking.DefaultConfig()
	queueCfg.PollInterval = 20 * time.Millisecond
	s.queue = matchmaking.New(s.storage, clock, queueCfg, logger)

	services := Services{
		Storage:  s.storage,
		Auth:     authService,
		Registry: s.registry,
		Queue:    s.queue,
		Games:    game.NewController(s.storage, rules.NewChess(), s.registry, clock, s.random, logger),
	}

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.MaxFrameSize = 1024
	s.server = New(cfg, services, clock, logger)
	s.Require().NoError(s.server.Listen())

	s.serveErr = make(chan error, 1)
	go func() { s.serveErr <- s.server.Serve() }()
}

func (s *ServerSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	s.NoError(s.server.Shutdown(ctx))
	s.NoError(<-s.serveErr)
}

func (s *ServerSuite) dial() *testClient {
	conn, err := net.Dial("tcp", s.server.Addr())
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &testClient{s: s, conn: conn}
}

func (s *ServerSuite) register(c *testClient, username string) {
	c.send(protocol.Register{Username: username, Password: "pw-" + username})
	s.Require().Equal(protocol.RegisterSuccess{}, c.read())
}

func (s *ServerSuite) login(c *testClient, username string) protocol.LoginSuccess {
	c.send(protocol.Login{Username: username, Password: "pw-" + username})
	msg := c.read()
	success, ok := msg.(protocol.LoginSuccess)
	s.Require().True(ok, "expected login_success, got %#v", msg)
	c.username = success.Username
	c.token = success.Token
	return success
}

func (s *ServerSuite) player(username string) *testClient {
	c := s.dial()
	s.register(c, username)
	s.login(c, username)
	return c
}

// pair logs two players in, queues both and returns them as white, black
func (s *ServerSuite) pair() (white, black *testClient, gameID int64) {
	alice := s.player("alice")
	bob := s.player("bob")

	alice.send(protocol.FindGame{Auth: alice.auth()})
	s.Eventually(func() bool { return s.queue.Len() == 1 }, readTimeout, 5*time.Millisecond)
	bob.send(protocol.FindGame{Auth: bob.auth()})

	aliceStart, ok := alice.read().(protocol.GameStart)
	s.Require().True(ok)
	bobStart, ok := bob.read().(protocol.GameStart)
	s.Require().True(ok)

	s.Equal(aliceStart.GameID, bobStart.GameID)
	s.Equal(rules.NewChess().InitialPosition(), aliceStart.Board)
	s.NotEqual(aliceStart.Color, bobStart.Color)

	if aliceStart.Color == string(model.ColorWhite) {
		return alice, bob, aliceStart.GameID
	}
	return bob, alice, aliceStart.GameID
}

func (s *ServerSuite) move(c *testClient, gameID int64, move string) {
	c.send(protocol.Move{Auth: c.auth(), GameID: gameID, Move: move})
}

// Protocol errors

func (s *ServerSuite) TestMalformedPayloadKeepsConnectionOpen() {
	c := s.dial()

	c.sendRaw("not json")
	c.expectError(ReasonInvalidFormat)

	c.sendRaw(`{"username":"alice"}`)
	c.expectError(ReasonInvalidFormat)

	c.sendRaw(`{"type":"dance"}`)
	c.expectError(ReasonUnknownType)

	c.sendRaw(`{"type":"login","username":"alice"}`)
	c.expectError("Missing field: password")

	// Still usable afterwards
	s.register(c, "alice")
}

func (s *ServerSuite) TestOversizedFrameIsDiscarded() {
	c := s.dial()

	big, err := json.Marshal(map[string]string{"type": "register", "username": string(make([]byte, 2048))})
	s.Require().NoError(err)
	c.sendRaw(string(big))
	c.expectError(ReasonInvalidFormat)

	s.register(c, "alice")
}

// Authentication

func (s *ServerSuite) TestRegisterDuplicate() {
	c := s.dial()
	s.register(c, "alice")

	c.send(protocol.Register{Username: "alice", Password: "other"})
	s.Equal(protocol.RegisterFailed{Reason: ReasonUsernameExists}, c.read())
}

func (s *ServerSuite) TestLoginReturnsRating() {
	c := s.dial()
	s.register(c, "alice")

	success := s.login(c, "alice")
	s.Equal("alice", success.Username)
	s.Equal(1200, success.Elo)
	s.Len(success.Token, 64)
}

func (s *ServerSuite) TestLoginWrongPassword() {
	c := s.dial()
	s.register(c, "alice")

	c.send(protocol.Login{Username: "alice", Password: "wrong"})
	s.Equal(protocol.LoginFailed{Reason: ReasonInvalidCredentials}, c.read())

	c.send(protocol.Login{Username: "nobody", Password: "wrong"})
	s.Equal(protocol.LoginFailed{Reason: ReasonInvalidCredentials}, c.read())
}

func (s *ServerSuite) TestRequestsWithBadTokenAreUnauthorized() {
	c := s.player("alice")

	c.send(protocol.FindGame{Auth: protocol.Auth{Username: "alice", Token: "bogus"}})
	c.expectError(ReasonUnauthorized)

	c.send(protocol.Move{Auth: protocol.Auth{Username: "alice", Token: "bogus"}, GameID: 1, Move: "e2e4"})
	c.expectError(ReasonUnauthorized)

	s.Equal(0, s.queue.Len())
}

func (s *ServerSuite) TestTokenOnlyValidOnItsOwnConnection() {
	alice := s.player("alice")
	other := s.dial()

	other.send(protocol.FindGame{Auth: alice.auth()})
	other.expectError(ReasonUnauthorized)
}

func (s *ServerSuite) TestLogout() {
	c := s.player("alice")
	token := c.token

	c.send(protocol.Logout{Auth: c.auth()})
	s.Equal(protocol.LogoutSuccess{}, c.read())
	s.Equal(0, s.registry.Count())

	c.send(protocol.FindGame{Auth: protocol.Auth{Username: "alice", Token: token}})
	c.expectError(ReasonUnauthorized)

	// Logging in again on the same connection works
	s.login(c, "alice")
}

// Matchmaking

func (s *ServerSuite) TestFindGameTwiceIsRejected() {
	c := s.player("alice")

	c.send(protocol.FindGame{Auth: c.auth()})
	s.Eventually(func() bool { return s.queue.Len() == 1 }, readTimeout, 5*time.Millisecond)

	c.send(protocol.FindGame{Auth: c.auth()})
	c.expectError(ReasonAlreadyQueued)
	s.Equal(1, s.queue.Len())
}

func (s *ServerSuite) TestPlayersArePaired() {
	white, black, gameID := s.pair()

	stored, err := s.storage.FindGame(s.ctx, model.GameID(gameID))
	s.Require().NoError(err)
	s.Equal(white.username, stored.White.Username)
	s.Equal(black.username, stored.Black.Username)
	s.Equal(0, s.queue.Len())
}

func (s *ServerSuite) TestFindGameWhileInGameIsRejected() {
	white, _, _ := s.pair()

	white.send(protocol.FindGame{Auth: white.auth()})
	white.expectError(ReasonAlreadyInGame)
}

func (s *ServerSuite) TestLogoutWhileQueuedLeavesQueue() {
	c := s.player("alice")

	c.send(protocol.FindGame{Auth: c.auth()})
	s.Eventually(func() bool { return s.queue.Len() == 1 }, readTimeout, 5*time.Millisecond)

	c.send(protocol.Logout{Auth: c.auth()})
	s.Equal(protocol.LogoutSuccess{}, c.read())
	s.Equal(0, s.queue.Len())

	snapshot, err := s.storage.SnapshotQueue(s.ctx)
	s.Require().NoError(err)
	s.Empty(snapshot)
}

// Games

func (s *ServerSuite) TestMovesAreBroadcast() {
	white, black, gameID := s.pair()

	s.move(white, gameID, "e2e4")
	s.Equal(protocol.Update{GameID: gameID, Move: "e2e4"}, white.read())
	s.Equal(protocol.Update{GameID: gameID, Move: "e2e4"}, black.read())

	s.move(black, gameID, "e7e5")
	s.Equal(protocol.Update{GameID: gameID, Move: "e7e5"}, white.read())
	s.Equal(protocol.Update{GameID: gameID, Move: "e7e5"}, black.read())
}

func (s *ServerSuite) TestMoveErrors() {
	white, black, gameID := s.pair()

	s.move(black, gameID, "e7e5")
	black.expectError(ReasonIllegalMove)

	s.move(white, gameID, "e2e5")
	white.expectError(ReasonIllegalMove)

	s.move(white, gameID+100, "e2e4")
	white.expectError(ReasonGameNotFound)

	carol := s.player("carol")
	s.move(carol, gameID, "e2e4")
	carol.expectError(ReasonNotParticipant)
}

func (s *ServerSuite) TestCheckmateEndsGame() {
	white, black, gameID := s.pair()

	for i, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		mover := white
		if i%2 == 1 {
			mover = black
		}
		s.move(mover, gameID, mv)
		s.Equal(protocol.Update{GameID: gameID, Move: mv}, white.read())
		s.Equal(protocol.Update{GameID: gameID, Move: mv}, black.read())
	}

	s.Equal(protocol.GameEnd{GameID: gameID, Winner: "black", Elo: 1184}, white.read())
	s.Equal(protocol.GameEnd{GameID: gameID, Winner: "black", Elo: 1216}, black.read())

	s.move(white, gameID, "e2e4")
	white.expectError(ReasonGameOver)

	// Both are free to queue again
	white.send(protocol.FindGame{Auth: white.auth()})
	s.Eventually(func() bool { return s.queue.Len() == 1 }, readTimeout, 5*time.Millisecond)
}

func (s *ServerSuite) TestDisconnectNotifiesOpponentAndCleansUp() {
	white, black, gameID := s.pair()

	s.Require().NoError(white.conn.Close())

	s.Equal(protocol.OpponentDisconnected{GameID: gameID}, black.read())

	_, err := s.storage.FindGame(s.ctx, model.GameID(gameID))
	s.ErrorIs(err, model.ErrGameNotFound)

	s.Eventually(func() bool {
		_, err := s.storage.FindSessionByUsername(s.ctx, white.username)
		return err != nil
	}, readTimeout, 5*time.Millisecond)
	s.Equal(1, s.registry.Count())

	// The survivor can look for a new game
	black.send(protocol.FindGame{Auth: black.auth()})
	s.Eventually(func() bool { return s.queue.Len() == 1 }, readTimeout, 5*time.Millisecond)
}

func (s *ServerSuite) TestDisconnectWhileQueuedRemovesEntry() {
	c := s.player("alice")

	c.send(protocol.FindGame{Auth: c.auth()})
	s.Eventually(func() bool { return s.queue.Len() == 1 }, readTimeout, 5*time.Millisecond)

	s.Require().NoError(c.conn.Close())

	s.Eventually(func() bool { return s.queue.Len() == 0 }, readTimeout, 5*time.Millisecond)
	s.Eventually(func() bool { return s.registry.Count() == 0 }, readTimeout, 5*time.Millisecond)
}

func (s *ServerSuite) TestLoginElsewhereEndsOldSession() {
	white, black, gameID := s.pair()

	again := s.dial()
	s.login(again, white.username)

	s.Equal(protocol.OpponentDisconnected{GameID: gameID}, black.read())

	s.move(white, gameID, "e2e4")
	white.expectError(ReasonUnauthorized)
}

// Shutdown

func (s *ServerSuite) TestShutdownNotifiesEveryConnection() {
	alice := s.player("alice")
	anon := s.dial()
	s.Eventually(func() bool { return s.server.ConnCount() == 2 }, readTimeout, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	s.Require().NoError(s.server.Shutdown(ctx))

	s.Equal(protocol.ServerShutdown{}, alice.read())
	s.Equal(protocol.ServerShutdown{}, anon.read())

	_, err := net.DialTimeout("tcp", s.server.Addr(), 200*time.Millisecond)
	s.Error(err)
}
