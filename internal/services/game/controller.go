package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/dependencies/random"
	"github.com/mcoot/chessgame-go/internal/metrics"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/rules"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/rating"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// ErrPlayerUnreachable is returned when a matched player is gone before the game starts
var ErrPlayerUnreachable = errors.New("player unreachable at game start")

// Controller is the authority for active games: it owns turn enforcement,
// termination and rating settlement. Every read-mutate-persist-notify
// sequence for one game runs under that game's lock.
type Controller struct {
	storage  storage.Storage
	rules    rules.Engine
	registry *session.Registry
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger

	locks *gameLocks
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	rules rules.Engine,
	registry *session.Registry,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:  storage,
		rules:    rules,
		registry: registry,
		clock:    clock,
		random:   random,
		logger:   logger.With(slog.String("component", "game")),
		locks:    newGameLocks(),
	}
}

// StartGame creates the game for a match with random colours and sends
// game_start to both players. If either player can no longer be reached the
// game is abandoned straight away.
func (c *Controller) StartGame(ctx context.Context, match *matchmaking.Match) (*model.Game, error) {
	requester := model.Participant{Username: match.Requester.Username, SessionID: match.Requester.SessionID}
	opponent := model.Participant{Username: match.Opponent.Username, SessionID: match.Opponent.SessionID}

	white, black := requester, opponent
	if c.random.Intn(2) == 1 {
		white, black = opponent, requester
	}

	game := &model.Game{
		White:     white,
		Black:     black,
		Position:  c.rules.InitialPosition(),
		Status:    model.GameStatusOngoing,
		CreatedAt: c.clock.Now(),
	}

	id, err := c.storage.CreateGame(ctx, game)
	if err != nil {
		c.logger.Error("failed to create game",
			slog.String("white", white.Username),
			slog.String("black", black.Username),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	game.ID = id
	metrics.GameStarted()

	c.logger.Info("game started",
		slog.Int64("game_id", int64(id)),
		slog.String("white", white.Username),
		slog.String("black", black.Username),
	)

	unlock := c.locks.Lock(id)
	defer unlock()

	whiteOK := c.registry.Send(white.SessionID, protocol.GameStart{
		Color:  string(model.ColorWhite),
		GameID: int64(id),
		Board:  game.Position,
	})
	blackOK := c.registry.Send(black.SessionID, protocol.GameStart{
		Color:  string(model.ColorBlack),
		GameID: int64(id),
		Board:  game.Position,
	})
	if whiteOK && blackOK {
		return game, nil
	}

	c.logger.Warn("player unreachable at game start", slog.Int64("game_id", int64(id)))
	if err := c.abandonLocked(ctx, game, whiteOK, blackOK); err != nil {
		return nil, err
	}
	return nil, ErrPlayerUnreachable
}

// GetGame retrieves a game by ID
func (c *Controller) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	return c.storage.FindGame(ctx, id)
}

// ActiveGame returns the user's ongoing game, or model.ErrGameNotFound
func (c *Controller) ActiveGame(ctx context.Context, username string) (*model.Game, error) {
	games, err := c.storage.GamesInvolving(ctx, username)
	if err != nil {
		return nil, err
	}
	for _, g := range games {
		if g.IsOngoing() {
			return g, nil
		}
	}
	return nil, model.ErrGameNotFound
}

// SubmitMove validates and applies a move from one of the game's players.
// The caller must already have authorized the session.
func (c *Controller) SubmitMove(ctx context.Context, id model.GameID, username string, sessionID model.SessionID, move string) error {
	unlock := c.locks.Lock(id)
	defer unlock()

	game, err := c.storage.FindGame(ctx, id)
	if err != nil {
		return err
	}
	if !game.IsOngoing() {
		return model.ErrGameComplete
	}

	color, ok := game.ColorOf(username, sessionID)
	if !ok {
		return model.ErrNotParticipant
	}

	turn, err := c.rules.Turn(game.Position)
	if err != nil {
		return fmt.Errorf("game %d: %w", id, err)
	}
	if turn != color {
		return model.ErrIllegalMove
	}

	next, err := c.rules.ApplyMove(game.Position, move)
	if err != nil {
		return err
	}

	if err := c.storage.UpdateGamePosition(ctx, id, next); err != nil {
		c.logger.Error("failed to persist move",
			slog.Int64("game_id", int64(id)),
			slog.String("error", err.Error()),
		)
		return err
	}
	game.Position = next

	c.logger.Debug("move applied",
		slog.Int64("game_id", int64(id)),
		slog.String("username", username),
		slog.String("move", move),
	)

	update := protocol.Update{GameID: int64(id), Move: move}
	c.registry.Send(game.White.SessionID, update)
	c.registry.Send(game.Black.SessionID, update)

	outcome, err := c.rules.Outcome(next)
	if err != nil {
		return fmt.Errorf("game %d: %w", id, err)
	}
	if !outcome.IsOver() {
		return nil
	}
	return c.finishLocked(ctx, game, outcome.Winner())
}

// finishLocked completes the game, settles both ratings from their pre-game
// values and tells each player their own new rating
func (c *Controller) finishLocked(ctx context.Context, game *model.Game, winner model.Winner) error {
	white, err := c.storage.FindUser(ctx, game.White.Username)
	if err != nil {
		return err
	}
	black, err := c.storage.FindUser(ctx, game.Black.Username)
	if err != nil {
		return err
	}

	// Completing first guarantees ratings are settled at most once
	if err := c.storage.CompleteGame(ctx, game.ID, winner); err != nil {
		return err
	}

	settled := rating.Settle(white.Rating, black.Rating, winner)
	if err := c.storage.UpdateRating(ctx, white.Username, settled.White); err != nil {
		return err
	}
	if err := c.storage.UpdateRating(ctx, black.Username, settled.Black); err != nil {
		return err
	}
	metrics.GameFinished(string(winner))

	c.logger.Info("game completed",
		slog.Int64("game_id", int64(game.ID)),
		slog.String("winner", string(winner)),
		slog.Int("white_rating", settled.White),
		slog.Int("black_rating", settled.Black),
	)

	c.registry.Send(game.White.SessionID, protocol.GameEnd{
		GameID: int64(game.ID),
		Winner: string(winner),
		Elo:    settled.White,
	})
	c.registry.Send(game.Black.SessionID, protocol.GameEnd{
		GameID: int64(game.ID),
		Winner: string(winner),
		Elo:    settled.Black,
	})
	return nil
}

// AbandonSession removes every ongoing game the session plays in and tells
// each opponent. Calling it again for the same session does nothing.
func (c *Controller) AbandonSession(ctx context.Context, username string, sessionID model.SessionID) error {
	games, err := c.storage.GamesInvolving(ctx, username)
	if err != nil {
		return err
	}

	var errs []error
	for _, g := range games {
		if !g.IsOngoing() || !g.HasSession(sessionID) {
			continue
		}
		if err := c.abandonSessionGame(ctx, g.ID, sessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) abandonSessionGame(ctx context.Context, id model.GameID, sessionID model.SessionID) error {
	unlock := c.locks.Lock(id)
	defer unlock()

	// Re-read under the lock: a concurrent move may have finished the game
	game, err := c.storage.FindGame(ctx, id)
	if errors.Is(err, model.ErrGameNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !game.IsOngoing() {
		return nil
	}

	leaverIsWhite := game.White.SessionID == sessionID
	return c.abandonLocked(ctx, game, !leaverIsWhite, leaverIsWhite)
}

// abandonLocked removes the game and notifies whichever side is flagged
func (c *Controller) abandonLocked(ctx context.Context, game *model.Game, notifyWhite, notifyBlack bool) error {
	if err := c.storage.RemoveGame(ctx, game.ID); err != nil {
		return err
	}
	metrics.GameFinished("abandoned")

	c.logger.Info("game abandoned", slog.Int64("game_id", int64(game.ID)))

	msg := protocol.OpponentDisconnected{GameID: int64(game.ID)}
	if notifyWhite {
		c.registry.Send(game.White.SessionID, msg)
	}
	if notifyBlack {
		c.registry.Send(game.Black.SessionID, msg)
	}
	return nil
}
