package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/chessgame-go/internal/dependencies/clock"
	"github.com/mcoot/chessgame-go/internal/dependencies/random"
	"github.com/mcoot/chessgame-go/internal/rules"
	"github.com/mcoot/chessgame-go/internal/server"
	"github.com/mcoot/chessgame-go/internal/services/auth"
	"github.com/mcoot/chessgame-go/internal/services/game"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	"github.com/mcoot/chessgame-go/internal/services/session"
	"github.com/mcoot/chessgame-go/internal/storage"
	"github.com/mcoot/chessgame-go/internal/storage/memory"
	redisstorage "github.com/mcoot/chessgame-go/internal/storage/redis"
	sqlstorage "github.com/mcoot/chessgame-go/internal/storage/sql"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQL    = "sql"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	Rules  rules.Engine

	// Services
	Registry       *session.Registry
	AuthService    *auth.Service
	Queue          *matchmaking.Queue
	GameController *game.Controller
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// MatchmakingConfig controls tolerance widening (optional)
	// If zero value, defaults to matchmaking.DefaultConfig()
	MatchmakingConfig matchmaking.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sql")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sql")
	SQLConfig *sqlstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	authCfg := cfg.AuthConfig
	if authCfg.TokenBytes == 0 {
		authCfg = auth.DefaultConfig()
	}
	queueCfg := cfg.MatchmakingConfig
	if queueCfg.WidenInterval == 0 {
		queueCfg = matchmaking.DefaultConfig()
	}

	app, err := newWithDependencies(store, clock.New(), random.New(), authCfg, queueCfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func newStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQL:
		if cfg.SQLConfig == nil {
			return nil, errors.New("SQLConfig required when StorageType is sql")
		}
		return sqlstorage.New(*cfg.SQLConfig)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sql'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	queueCfg matchmaking.Config,
	logger *slog.Logger,
) (*App, error) {
	engine := rules.NewChess()
	registry := session.NewRegistry(clk, logger)

	authService, err := auth.New(store, registry, clk, rnd, authCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Rules:          engine,
		Registry:       registry,
		AuthService:    authService,
		Queue:          matchmaking.New(store, clk, queueCfg, logger),
		GameController: game.NewController(store, engine, registry, clk, rnd, logger),
	}, nil
}

// ServerServices returns the collaborators the connection handlers need
func (a *App) ServerServices() server.Services {
	return server.Services{
		Storage:  a.Storage,
		Auth:     a.AuthService,
		Registry: a.Registry,
		Queue:    a.Queue,
		Games:    a.GameController,
	}
}

// Close releases the storage backend
func (a *App) Close() error {
	return a.Storage.Close()
}
