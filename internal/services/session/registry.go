// Package session holds the live binding between logged in users and their
// connections.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/protocol"
)

// ErrConnClosed is returned by a Sender whose connection has gone away
var ErrConnClosed = errors.New("connection closed")

// Sender delivers messages to one client connection
type Sender interface {
	Send(msg protocol.Message) error
}

// Entry is one live session
type Entry struct {
	SessionID model.SessionID
	Username  string
	Token     string
	Conn      Sender
	BoundAt   time.Time
}

// Registry maps live sessions to their connections. A session is valid
// exactly as long as it is held here.
type Registry struct {
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[model.SessionID]*Entry
	byConn   map[Sender]model.SessionID
}

// NewRegistry creates an empty registry
func NewRegistry(clock clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		clock:    clock,
		logger:   logger.With(slog.String("component", "session_registry")),
		sessions: make(map[model.SessionID]*Entry),
		byConn:   make(map[Sender]model.SessionID),
	}
}

// Bind registers a new session on conn. Any session previously bound to the
// same connection is released and returned so the caller can clean it up.
func (r *Registry) Bind(sessionID model.SessionID, username, token string, conn Sender) (previous *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if oldID, ok := r.byConn[conn]; ok {
		if old, ok := r.sessions[oldID]; ok {
			e := *old
			previous = &e
		}
		delete(r.sessions, oldID)
	}

	r.sessions[sessionID] = &Entry{
		SessionID: sessionID,
		Username:  username,
		Token:     token,
		Conn:      conn,
		BoundAt:   r.clock.Now(),
	}
	r.byConn[conn] = sessionID

	r.logger.Debug("session bound", slog.String("username", username), slog.String("session_id", string(sessionID)))
	return previous
}

// Unbind removes a session. It reports whether the session was present.
func (r *Registry) Unbind(sessionID model.SessionID) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unbindLocked(sessionID)
}

// UnbindConn removes whatever session is bound to conn
func (r *Registry) UnbindConn(conn Sender) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.byConn[conn]
	if !ok {
		return nil, false
	}
	return r.unbindLocked(sessionID)
}

func (r *Registry) unbindLocked(sessionID model.SessionID) (*Entry, bool) {
	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(r.sessions, sessionID)
	if r.byConn[entry.Conn] == sessionID {
		delete(r.byConn, entry.Conn)
	}
	e := *entry
	return &e, true
}

// Lookup returns a copy of the live session
func (r *Registry) Lookup(sessionID model.SessionID) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	e := *entry
	return &e, true
}

// IsLive reports whether the session is still bound to a connection
func (r *Registry) IsLive(sessionID model.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Send delivers msg to the session's connection. It reports false when the
// session is gone or the connection refused the message.
func (r *Registry) Send(sessionID model.SessionID, msg protocol.Message) bool {
	r.mu.RLock()
	entry, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := entry.Conn.Send(msg); err != nil {
		r.logger.Warn("send failed",
			slog.String("session_id", string(sessionID)),
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
