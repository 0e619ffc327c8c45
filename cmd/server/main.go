package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nantokaworks/twitch-raffle-bot/internal/dispatcher"
	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
	"github.com/nantokaworks/twitch-raffle-bot/internal/notification"
	"github.com/nantokaworks/twitch-raffle-bot/internal/raffle"
	"github.com/nantokaworks/twitch-raffle-bot/internal/settings"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/logger"
	"github.com/nantokaworks/twitch-raffle-bot/internal/shared/paths"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitcheventsub"
	"github.com/nantokaworks/twitch-raffle-bot/internal/twitchtoken"
	"github.com/nantokaworks/twitch-raffle-bot/internal/userdir"
	"github.com/nantokaworks/twitch-raffle-bot/internal/webserver"
	"go.uber.org/zap"
)

var commands = dispatcher.New()

func main() {
	logger.Init(false)
	defer logger.Sync()

	logger.Info("Starting twitch-raffle-bot server")

	if err := paths.EnsureDataDirs(); err != nil {
		logger.Fatal("Failed to ensure data directories", zap.Error(err))
	}

	if _, err := localdb.SetupDB(paths.GetDBPath()); err != nil {
		logger.Fatal("Failed to setup database", zap.Error(err))
	}

	manager := settings.NewSettingsManager(localdb.GetDB())
	if err := manager.InitializeDefaultSettings(); err != nil {
		logger.Warn("Failed to initialize default settings", zap.Error(err))
	}
	if err := manager.MigrateFromEnv(); err != nil {
		logger.Warn("Failed to migrate settings from environment", zap.Error(err))
	}

	// env.LoadEnv must run after DB initialization.
	env.LoadEnv()
	if env.Value.DebugMode {
		logger.Init(true)
		logger.Info("Debug mode enabled")
	}

	twitchtoken.SetupCallbackServer()
	notification.Initialize()

	ctx, cancel := context.WithCancel(context.Background())

	engine := raffle.NewWithDefaults(commands)
	engine.RegisterCommands()
	engine.Restore()
	engine.StartScheduler(ctx)

	userdir.StartWatchTimeAccrual(ctx)

	webserver.SetRaffleEngine(engine)

	port := 8080
	if env.Value.ServerPort != 0 {
		port = env.Value.ServerPort
	}

	if err := webserver.StartWebServer(port); err != nil {
		logger.Fatal("Failed to start web server", zap.Error(err))
	}

	tokenRefreshDone := make(chan struct{})
	startTwitchBackground(tokenRefreshDone)

	logger.Info("Server started",
		zap.Int("port", port),
		zap.String("dashboard", fmt.Sprintf("http://localhost:%d/", port)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")

	close(tokenRefreshDone)
	cancel()
	twitcheventsub.Stop()
	webserver.Shutdown()
	notification.Shutdown()

	logger.Info("Shutdown complete")
}
