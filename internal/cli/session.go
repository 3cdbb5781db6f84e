package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mcoot/chessgame-go/internal/protocol"
)

// ErrServerShutdown is returned once the server announces it is going away
var ErrServerShutdown = errors.New("server is shutting down")

// ServerError is a failure reported by the game server
type ServerError struct {
	Reason string
}

func (e *ServerError) Error() string {
	return e.Reason
}

// Session is one connection to the game server
type Session struct {
	conn     net.Conn
	maxFrame int
	auth     protocol.Auth
	elo      int
}

// Dial connects to the game server at addr
func Dial(ctx context.Context, addr string) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Session{conn: conn, maxFrame: protocol.DefaultMaxFrameSize}, nil
}

// Username returns the logged in user, or "" before login
func (s *Session) Username() string {
	return s.auth.Username
}

// Token returns the session token issued at login
func (s *Session) Token() string {
	return s.auth.Token
}

// Elo returns the rating reported at login
func (s *Session) Elo() int {
	return s.elo
}

// Send writes one request to the server
func (s *Session) Send(req protocol.Request) error {
	if err := protocol.WriteMessage(s.conn, req); err != nil {
		return fmt.Errorf("send %s: %w", req.MessageType(), err)
	}
	return nil
}

// Receive waits for the next message from the server. Cancelling ctx
// interrupts the wait.
func (s *Session) Receive(ctx context.Context) (protocol.Message, error) {
	if err := s.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	msg, err := protocol.ReadMessage(s.conn, s.maxFrame)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	return msg, nil
}

// roundTrip sends req and returns the next message, turning error and
// server_shutdown replies into errors
func (s *Session) roundTrip(ctx context.Context, req protocol.Request) (protocol.Message, error) {
	if err := s.Send(req); err != nil {
		return nil, err
	}
	msg, err := s.Receive(ctx)
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case protocol.Error:
		return nil, &ServerError{Reason: m.Reason}
	case protocol.ServerShutdown:
		return nil, ErrServerShutdown
	}
	return msg, nil
}

// Register creates an account
func (s *Session) Register(ctx context.Context, username, password string) error {
	msg, err := s.roundTrip(ctx, protocol.Register{Username: username, Password: password})
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case protocol.RegisterSuccess:
		return nil
	case protocol.RegisterFailed:
		return &ServerError{Reason: m.Reason}
	default:
		return unexpectedReply(msg)
	}
}

// Login authenticates this connection
func (s *Session) Login(ctx context.Context, username, password string) error {
	msg, err := s.roundTrip(ctx, protocol.Login{Username: username, Password: password})
	if err != nil {
		return err
	}
	switch m := msg.(type) {
	case protocol.LoginSuccess:
		s.auth = protocol.Auth{Username: m.Username, Token: m.Token}
		s.elo = m.Elo
		return nil
	case protocol.LoginFailed:
		return &ServerError{Reason: m.Reason}
	default:
		return unexpectedReply(msg)
	}
}

// Logout ends the session but keeps the connection open
func (s *Session) Logout(ctx context.Context) error {
	msg, err := s.roundTrip(ctx, protocol.Logout{Auth: s.auth})
	if err != nil {
		return err
	}
	if _, ok := msg.(protocol.LogoutSuccess); !ok {
		return unexpectedReply(msg)
	}
	s.auth = protocol.Auth{}
	return nil
}

// FindGame joins the matchmaking queue. The match arrives later as
// game_start.
func (s *Session) FindGame() error {
	return s.Send(protocol.FindGame{Auth: s.auth})
}

// Move submits a move in UCI notation. Acceptance arrives as an update.
func (s *Session) Move(gameID int64, move string) error {
	return s.Send(protocol.Move{Auth: s.auth, GameID: gameID, Move: move})
}

// Close drops the connection
func (s *Session) Close() error {
	return s.conn.Close()
}

func unexpectedReply(msg protocol.Message) error {
	return fmt.Errorf("unexpected %s reply", msg.MessageType())
}
