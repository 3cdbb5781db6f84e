package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chessgame-go/internal/metrics"
	"github.com/mcoot/chessgame-go/internal/middleware"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/services/auth"
	"github.com/mcoot/chessgame-go/internal/services/game"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/session"
)

// cleanupTimeout bounds the work done when a session ends
const cleanupTimeout = 5 * time.Second

// State is where a connection is in its lifecycle
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateQueued
	StateInGame
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateQueued:
		return "queued"
	case StateInGame:
		return "in_game"
	default:
		return "unknown"
	}
}

// Handler runs the protocol for one connection. It is also the
// session.Sender the registry routes this connection's messages through,
// which is how game events move it between states.
type Handler struct {
	conn     *Conn
	services Services
	logger   *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	searches sync.WaitGroup

	mu       sync.Mutex
	state    State
	username string
	gameID   model.GameID

	closeOnce sync.Once
}

// NewHandler creates the handler for conn. ctx bounds background work such
// as matchmaking searches and is cancelled by Close.
func NewHandler(ctx context.Context, conn *Conn, services Services, logger *slog.Logger) *Handler {
	ctx, cancel := context.WithCancel(ctx)
	return &Handler{
		conn:     conn,
		services: services,
		logger:   logger.With(slog.String("conn_id", conn.ID())),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns the connection's current state
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Username returns the logged in user, or "" before login
func (h *Handler) Username() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.username
}

// Send delivers msg to the client, applying the state change it implies
func (h *Handler) Send(msg protocol.Message) error {
	h.observe(msg)
	return h.conn.Send(msg)
}

func (h *Handler) observe(msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch m := msg.(type) {
	case protocol.GameStart:
		if h.state == StateAuthenticated || h.state == StateQueued {
			h.state = StateInGame
			h.gameID = model.GameID(m.GameID)
		}
	case protocol.GameEnd:
		h.leaveGameLocked(model.GameID(m.GameID))
	case protocol.OpponentDisconnected:
		h.leaveGameLocked(model.GameID(m.GameID))
	}
}

func (h *Handler) leaveGameLocked(id model.GameID) {
	if h.state == StateInGame && h.gameID == id {
		h.state = StateAuthenticated
		h.gameID = 0
	}
}

func (h *Handler) reply(msg protocol.Message) {
	if err := h.conn.Send(msg); err != nil {
		h.logger.Debug("reply not delivered",
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) replyError(err error) {
	reason := reasonFor(err)
	if reason == ReasonInternal {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}
	metrics.ErrorReplied(reason)
	h.reply(protocol.Error{Reason: reason})
}

// recoverFrame answers a frame whose handling panicked with an internal
// error, keeping the connection open
func (h *Handler) recoverFrame() {
	if err := recover(); err != nil {
		middleware.Recovered(h.logger, "protocol", err)
		metrics.ErrorReplied(ReasonInternal)
		h.reply(protocol.Error{Reason: ReasonInternal})
	}
}

// HandleFrame decodes one payload and dispatches it
func (h *Handler) HandleFrame(payload []byte) {
	defer h.recoverFrame()

	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		h.replyError(err)
		return
	}
	metrics.MessageReceived(string(req.MessageType()))

	switch r := req.(type) {
	case protocol.Register:
		h.handleRegister(r)
	case protocol.Login:
		h.handleLogin(r)
	case protocol.Logout:
		h.handleLogout(r)
	case protocol.FindGame:
		h.handleFindGame(r)
	case protocol.Move:
		h.handleMove(r)
	default:
		h.replyError(protocol.ErrUnknownType)
	}
}

func (h *Handler) handleRegister(r protocol.Register) {
	err := h.services.Auth.Register(h.ctx, r.Username, r.Password)
	switch {
	case err == nil:
		h.reply(protocol.RegisterSuccess{})
	case errors.Is(err, auth.ErrUsernameExists):
		h.reply(protocol.RegisterFailed{Reason: ReasonUsernameExists})
	default:
		h.replyError(err)
	}
}

func (h *Handler) handleLogin(r protocol.Login) {
	result, err := h.services.Auth.Login(h.ctx, r.Username, r.Password, h)
	metrics.LoginAttempted(err == nil)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.reply(protocol.LoginFailed{Reason: ReasonInvalidCredentials})
			return
		}
		h.replyError(err)
		return
	}

	if result.Previous != nil {
		h.endSession(result.Previous)
	}
	if result.Superseded != nil {
		h.endSession(result.Superseded)
	}

	h.mu.Lock()
	h.state = StateAuthenticated
	h.username = result.Username
	h.gameID = 0
	h.mu.Unlock()

	h.reply(protocol.LoginSuccess{
		Username: result.Username,
		Token:    result.Token,
		Elo:      result.Rating,
	})
}

func (h *Handler) handleLogout(r protocol.Logout) {
	entry, err := h.authorize(r)
	if err != nil {
		h.replyError(err)
		return
	}

	h.services.Registry.Unbind(entry.SessionID)
	h.endSession(entry)

	h.mu.Lock()
	h.state = StateUnauthenticated
	h.username = ""
	h.gameID = 0
	h.mu.Unlock()

	h.reply(protocol.LogoutSuccess{})
}

func (h *Handler) handleFindGame(r protocol.FindGame) {
	entry, err := h.authorize(r)
	if err != nil {
		h.replyError(err)
		return
	}

	h.mu.Lock()
	state := h.state
	if state == StateAuthenticated {
		h.state = StateQueued
	}
	h.mu.Unlock()

	switch state {
	case StateQueued:
		h.replyError(model.ErrAlreadyQueued)
		return
	case StateInGame:
		h.replyError(model.ErrAlreadyInGame)
		return
	}

	ticket, err := h.enqueue(entry)
	if err != nil {
		h.mu.Lock()
		if h.state == StateQueued {
			h.state = StateAuthenticated
		}
		h.mu.Unlock()
		h.replyError(err)
		return
	}

	h.searches.Add(1)
	go h.search(ticket)
}

func (h *Handler) enqueue(entry *session.Entry) (*matchmaking.Ticket, error) {
	if h.services.Queue.IsQueued(entry.Username, entry.SessionID) {
		return nil, model.ErrAlreadyQueued
	}

	_, err := h.services.Games.ActiveGame(h.ctx, entry.Username)
	if err == nil {
		return nil, model.ErrAlreadyInGame
	}
	if !errors.Is(err, model.ErrGameNotFound) {
		return nil, err
	}

	user, err := h.services.Storage.FindUser(h.ctx, entry.Username)
	if err != nil {
		return nil, err
	}

	return h.services.Queue.Enqueue(h.ctx, entry.Username, entry.SessionID, user.Rating)
}

// search waits for an opponent and starts the game. Only the side whose
// search produced the match starts it; the other side learns about the game
// from game_start.
func (h *Handler) search(ticket *matchmaking.Ticket) {
	defer h.searches.Done()

	match, err := ticket.FindMatch(h.ctx)
	switch {
	case err == nil:
	case errors.Is(err, matchmaking.ErrMatched),
		errors.Is(err, matchmaking.ErrLeftQueue),
		errors.Is(err, context.Canceled):
		return
	default:
		h.searchFailed(err)
		return
	}

	// The game must be fully started or abandoned even if this connection
	// goes away meanwhile
	if _, err := h.services.Games.StartGame(context.WithoutCancel(h.ctx), match); err != nil {
		if errors.Is(err, game.ErrPlayerUnreachable) {
			return
		}
		h.searchFailed(err)
	}
}

func (h *Handler) searchFailed(err error) {
	h.mu.Lock()
	if h.state == StateQueued {
		h.state = StateAuthenticated
	}
	h.mu.Unlock()
	h.replyError(err)
}

func (h *Handler) handleMove(r protocol.Move) {
	entry, err := h.authorize(r)
	if err != nil {
		h.replyError(err)
		return
	}

	err = h.services.Games.SubmitMove(h.ctx, model.GameID(r.GameID), entry.Username, entry.SessionID, r.Move)
	if err != nil {
		h.replyError(err)
	}
}

// authorize checks the request's credentials and that the session they
// name belongs to this connection
func (h *Handler) authorize(req protocol.Authenticated) (*session.Entry, error) {
	creds := req.Credentials()
	entry, err := h.services.Auth.Authorize(h.ctx, creds.Username, creds.Token)
	if err != nil {
		return nil, err
	}
	if entry.Conn != session.Sender(h) {
		return nil, auth.ErrUnauthorized
	}
	return entry, nil
}

// endSession removes everything a session left behind: its queue entry,
// its ongoing games and its stored binding. The registry entry must already
// be gone. Safe to repeat.
func (h *Handler) endSession(entry *session.Entry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), cleanupTimeout)
	defer cancel()

	logger := h.logger.With(
		slog.String("username", entry.Username),
		slog.String("session_id", string(entry.SessionID)),
	)

	if err := h.services.Queue.Leave(ctx, entry.Username, entry.SessionID); err != nil {
		logger.Error("failed to leave queue", slog.String("error", err.Error()))
	}
	if err := h.services.Games.AbandonSession(ctx, entry.Username, entry.SessionID); err != nil {
		logger.Error("failed to abandon games", slog.String("error", err.Error()))
	}
	if err := h.services.Auth.Release(ctx, entry.SessionID); err != nil {
		logger.Error("failed to release session", slog.String("error", err.Error()))
	}
	logger.Info("session ended")
}

// Close tears the connection's session down and waits for its background
// searches to finish. Calling it again does nothing.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		entry, ok := h.services.Registry.UnbindConn(h)
		if ok {
			h.endSession(entry)
		}
		h.cancel()
		h.searches.Wait()

		h.mu.Lock()
		h.state = StateUnauthenticated
		h.username = ""
		h.gameID = 0
		h.mu.Unlock()
	})
}
