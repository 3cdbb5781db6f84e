// Package server accepts client connections and runs the chess protocol on
// each of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/metrics"
	"github.com/mcoot/chessgame-go/internal/protocol"
	"github.com/mcoot/chessgame-go/internal/services/auth"
	"github.com/mcoot/chessgame-go/internal/services/game"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// Config holds configuration for the game server
type Config struct {
	Addr           string
	MaxFrameSize   int
	SendBufferSize int
	WriteTimeout   time.Duration
}

// DefaultConfig returns sensible defaults for server configuration
func DefaultConfig() Config {
	return Config{
		Addr:           ":9000",
		MaxFrameSize:   protocol.DefaultMaxFrameSize,
		SendBufferSize: sendBufferSize,
		WriteTimeout:   writeWait,
	}
}

// Services are the collaborators every connection handler uses
type Services struct {
	Storage  storage.Storage
	Auth     *auth.Service
	Registry *session.Registry
	Queue    *matchmaking.Queue
	Games    *game.Controller
}

// Server is the TCP front end of the game server
type Server struct {
	cfg      Config
	services Services
	hub      *Hub
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	closing  atomic.Bool
	hubOnce  sync.Once
	conns    sync.WaitGroup
}

// New creates a server. Call Start, or Listen and Serve, to accept clients.
func New(cfg Config, services Services, clock clock.Clock, logger *slog.Logger) *Server {
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = protocol.DefaultMaxFrameSize
	}
	logger = logger.With(slog.String("component", "server"))
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		services: services,
		hub:      NewHub(clock, logger),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds the listening socket
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("server is not listening")
	}

	s.startHub()
	s.logger.Info("starting game server", slog.String("addr", l.Addr().String()))

	for {
		nc, err := l.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.conns.Add(1)
		go s.serveConn(nc)
	}
}

func (s *Server) startHub() {
	s.hubOnce.Do(func() { go s.hub.Run() })
}

func (s *Server) serveConn(nc net.Conn) {
	defer s.conns.Done()

	conn := newConn(uuid.NewString(), nc, s.cfg.SendBufferSize, s.cfg.WriteTimeout, s.logger)
	go conn.writePump()

	if !s.hub.Register(conn) {
		_ = conn.Send(protocol.ServerShutdown{})
		conn.Close()
		<-conn.Done()
		return
	}

	metrics.ConnectionOpened()
	s.logger.Info("client connected",
		slog.String("conn_id", conn.ID()),
		slog.String("remote_addr", nc.RemoteAddr().String()))

	handler := NewHandler(s.ctx, conn, s.services, s.logger)
	defer func() {
		handler.Close()
		s.hub.Unregister(conn)
		conn.Close()
		<-conn.Done()
		metrics.ConnectionClosed()
		s.logger.Info("client disconnected", slog.String("conn_id", conn.ID()))
	}()

	for {
		payload, err := protocol.ReadFrame(nc, s.cfg.MaxFrameSize)
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				handler.replyError(err)
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("read failed",
					slog.String("conn_id", conn.ID()),
					slog.String("error", err.Error()))
			}
			return
		}
		handler.HandleFrame(payload)
	}
}

// Addr returns the bound listen address, or the configured one before Listen
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// ConnCount returns the number of open connections
func (s *Server) ConnCount() int {
	return s.hub.ConnCount()
}

// Shutdown stops accepting, tells every client the server is going away,
// and waits for their connections to wind down
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down game server")
	s.closing.Store(true)

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	s.startHub()
	s.hub.Close()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("game server stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown error: %w", ctx.Err())
	}
}
