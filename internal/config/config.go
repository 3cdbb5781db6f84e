// Package config loads the server's runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQL    = "sql"
)

// Config is everything cmd/server needs to start
type Config struct {
	ListenAddr string `env:"CHESS_LISTEN_ADDR" envDefault:":9000"`
	AdminAddr  string `env:"CHESS_ADMIN_ADDR"  envDefault:":9090"`
	AdminToken string `env:"CHESS_ADMIN_TOKEN"`
	LogLevel   string `env:"LOG_LEVEL"         envDefault:"info"`

	StorageType    string `env:"STORAGE_TYPE"    envDefault:"memory"`
	RedisURL       string `env:"REDIS_URL"`
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseDSN    string `env:"DATABASE_DSN"    envDefault:"file:chess.db?_busy_timeout=5000"`

	MaxFrameSize   int           `env:"CHESS_MAX_FRAME_SIZE"   envDefault:"65536"`
	SendBufferSize int           `env:"CHESS_SEND_BUFFER_SIZE" envDefault:"256"`
	WriteTimeout   time.Duration `env:"CHESS_WRITE_TIMEOUT"    envDefault:"10s"`

	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	InitialTolerance int           `env:"MATCH_INITIAL_TOLERANCE" envDefault:"50"`
	ToleranceStep    int           `env:"MATCH_TOLERANCE_STEP"    envDefault:"50"`
	WidenInterval    time.Duration `env:"MATCH_WIDEN_INTERVAL"    envDefault:"5s"`
	PollInterval     time.Duration `env:"MATCH_POLL_INTERVAL"     envDefault:"500ms"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load reads the configuration from the process environment
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the configuration from the given variables only
func LoadFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the server cannot start with
func (c Config) Validate() error {
	var errs []error

	switch c.StorageType {
	case StorageMemory, StorageSQL:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE_TYPE %q: must be memory, redis or sql", c.StorageType))
	}

	if c.StorageType == StorageSQL && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN required when STORAGE_TYPE=sql"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.MaxFrameSize <= 0 {
		errs = append(errs, errors.New("CHESS_MAX_FRAME_SIZE must be positive"))
	}
	if c.InitialTolerance < 0 || c.ToleranceStep < 0 {
		errs = append(errs, errors.New("matchmaking tolerances must not be negative"))
	}
	if c.WidenInterval <= 0 || c.PollInterval <= 0 {
		errs = append(errs, errors.New("matchmaking intervals must be positive"))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
