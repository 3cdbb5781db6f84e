package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/dependencies/random"
	"github.com/mcoot/chessgame-go/internal/model"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUsernameExists     = errors.New("username already exists")
)

// Config holds configuration for the auth service
type Config struct {
	BcryptCost    int
	TokenBytes    int
	InitialRating int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost:    bcrypt.DefaultCost,
		TokenBytes:    32,
		InitialRating: model.DefaultRating,
	}
}

// LoginResult is returned on a successful login
type LoginResult struct {
	SessionID model.SessionID
	Username  string
	Token     string
	Rating    int

	// Previous is the session the connection held before this login, if any.
	// It has already been unbound; the caller owns the rest of its cleanup.
	Previous *session.Entry

	// Superseded is the user's earlier session on another connection, if one
	// was still live. It has been unbound the same way as Previous.
	Superseded *session.Entry
}

// Service handles registration, login and token authorization
type Service struct {
	storage  storage.Storage
	registry *session.Registry
	clock    clock.Clock
	random   random.Random
	cfg      Config
	logger   *slog.Logger

	// dummyHash is compared against for unknown usernames so a failed login
	// costs the same whichever field was wrong
	dummyHash []byte
}

// New creates a new auth Service
func New(storage storage.Storage, registry *session.Registry, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) (*Service, error) {
	defaults := DefaultConfig()
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = defaults.TokenBytes
	}
	if cfg.InitialRating == 0 {
		cfg.InitialRating = defaults.InitialRating
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &Service{
		storage:   storage,
		registry:  registry,
		clock:     clock,
		random:    random,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "auth")),
		dummyHash: dummy,
	}, nil
}

// Register creates a user account with the default rating
func (s *Service) Register(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.storage.AddUser(ctx, &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Rating:       s.cfg.InitialRating,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, model.ErrUserExists) {
		return ErrUsernameExists
	}
	if err != nil {
		return err
	}

	s.logger.Info("user registered", slog.String("username", username))
	return nil
}

// Login verifies the password and opens a new session bound to conn
func (s *Service) Login(ctx context.Context, username, password string, conn session.Sender) (*LoginResult, error) {
	user, err := s.storage.FindUser(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := model.SessionID(uuid.NewString())
	token := s.random.Hex(s.cfg.TokenBytes)

	previous := s.registry.Bind(sessionID, username, token, conn)
	if err := s.storage.BindSession(ctx, username, sessionID); err != nil {
		s.registry.Unbind(sessionID)
		return nil, err
	}

	var superseded *session.Entry
	if user.ActiveSessionID != "" && user.ActiveSessionID != sessionID {
		if entry, ok := s.registry.Unbind(user.ActiveSessionID); ok {
			superseded = entry
		}
	}

	s.logger.Info("user logged in",
		slog.String("username", username),
		slog.String("session_id", string(sessionID)),
	)

	return &LoginResult{
		SessionID:  sessionID,
		Username:   username,
		Token:      token,
		Rating:     user.Rating,
		Previous:   previous,
		Superseded: superseded,
	}, nil
}

// Authorize checks a username/token pair against the user's current session
func (s *Service) Authorize(ctx context.Context, username, token string) (*session.Entry, error) {
	sessionID, err := s.storage.FindSessionByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	entry, ok := s.registry.Lookup(sessionID)
	if !ok || entry.Username != username {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(entry.Token), []byte(token)) != 1 {
		return nil, ErrUnauthorized
	}
	return entry, nil
}

// Release forgets the session in both the registry and storage.
// Safe to call for a session that is already gone.
func (s *Service) Release(ctx context.Context, sessionID model.SessionID) error {
	if entry, ok := s.registry.Unbind(sessionID); ok {
		s.logger.Info("session released",
			slog.String("username", entry.Username),
			slog.String("session_id", string(sessionID)),
		)
	}
	return s.storage.DeleteSession(ctx, sessionID)
}
