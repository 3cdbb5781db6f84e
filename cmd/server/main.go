package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/chessgame-go/internal/api"
	"github.com/mcoot/chessgame-go/internal/config"
	"github.com/mcoot/chessgame-go/internal/factory"
	"github.com/mcoot/chessgame-go/internal/server"
	"github.com/mcoot/chessgame-go/internal/services/auth"
	"github.com/mcoot/chessgame-go/internal/services/matchmaking"
	redisstorage "github.com/mcoot/chessgame-go/internal/storage/redis"
	sqlstorage "github.com/mcoot/chessgame-go/internal/storage/sql"
)

func main() {
	cfg, err := config.Load()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	os.Exit(run(cfg, logger))
}

// run serves until a signal or a server failure and returns the exit code
func run(cfg config.Config, logger *slog.Logger) int {
	// Build factory config from environment
	authCfg := auth.DefaultConfig()
	authCfg.BcryptCost = cfg.BcryptCost

	factoryCfg := factory.Config{
		AuthConfig: authCfg,
		MatchmakingConfig: matchmaking.Config{
			InitialTolerance: cfg.InitialTolerance,
			ToleranceStep:    cfg.ToleranceStep,
			WidenInterval:    cfg.WidenInterval,
			PollInterval:     cfg.PollInterval,
		},
		Logger:      logger,
		StorageType: cfg.StorageType,
	}

	switch cfg.StorageType {
	case config.StorageRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case config.StorageSQL:
		sqlCfg := sqlstorage.DefaultConfig()
		sqlCfg.Driver = cfg.DatabaseDriver
		sqlCfg.DSN = cfg.DatabaseDSN
		factoryCfg.SQLConfig = &sqlCfg
	}

	// Create application factory
	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	// Create game server
	gameServer := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		MaxFrameSize:   cfg.MaxFrameSize,
		SendBufferSize: cfg.SendBufferSize,
		WriteTimeout:   cfg.WriteTimeout,
	}, app.ServerServices(), app.Clock, logger)

	// Create admin API
	adminRouter := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		Storage:        app.Storage,
		Registry:       app.Registry,
		Queue:          app.Queue,
		GameController: app.GameController,
		Conns:          gameServer,
		AdminToken:     cfg.AdminToken,
	})
	serverConfig := api.DefaultServerConfig()
	serverConfig.Addr = cfg.AdminAddr
	serverConfig.ShutdownTimeout = cfg.ShutdownTimeout
	adminServer := api.NewServer(adminRouter, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start servers in goroutines
	errCh := make(chan error, 2)
	go func() {
		errCh <- gameServer.Start()
	}()
	go func() {
		errCh <- adminServer.Start()
	}()

	logger.Info("server started",
		slog.String("game_addr", cfg.ListenAddr),
		slog.String("admin_addr", cfg.AdminAddr),
		slog.String("storage", cfg.StorageType))

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := errors.Join(
		gameServer.Shutdown(shutdownCtx),
		adminServer.Shutdown(shutdownCtx),
	); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	return exitCode
}
