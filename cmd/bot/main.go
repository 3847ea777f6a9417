package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	configloader "github.com/quailrun-gg/scrimsync/external/config"
	"github.com/quailrun-gg/scrimsync/external/discord"
	storeimpl "github.com/quailrun-gg/scrimsync/external/store"
	webhookimpl "github.com/quailrun-gg/scrimsync/external/webhook"
	"github.com/quailrun-gg/scrimsync/internal/config"
	discordpkg "github.com/quailrun-gg/scrimsync/internal/discord"
	"github.com/quailrun-gg/scrimsync/internal/scrim"
	"github.com/samber/do/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	bootstrapTimeout      = 60 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("startup: no .env file found; using process environment")
	}

	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching discord bot")
	runBot(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	storeimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	scrim.RegisterDI(injector)

	return injector
}

func runBot(cfg *config.Config, injector do.Injector) {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*scrim.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve scrim manager", "error", err)
		os.Exit(1)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancelConnect()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(connectCtx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected")
	defer func() {
		if err := dc.Close(); err != nil {
			slog.Error("discord close failed", "error", err)
		}
	}()

	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	manager.SetBotUserID(botUserID)

	if err := dc.UpsertGuildSlashCommands(cfg.DiscordGuildID, scrim.SlashCommandDefinitions()); err != nil {
		slog.Error("failed to upsert slash commands", "error", err, "guild_id", cfg.DiscordGuildID)
		os.Exit(1)
	}

	dc.RegisterReactionAddHandler(manager.HandleReactionAdd)
	dc.RegisterReactionRemoveHandler(manager.HandleReactionRemove)
	dc.RegisterMessageDeleteHandler(manager.HandleTrackedMessageDeleted)
	dc.RegisterScheduledEventUpdateHandler(manager.HandleScheduledEventUpdate)
	dc.RegisterSlashCommandHandler(manager.HandleSlashCommand)
	slog.Info("discord handlers registered", "guild_id", cfg.DiscordGuildID)

	bootstrapCtx, cancelBootstrap := context.WithTimeout(context.Background(), bootstrapTimeout)
	if err := manager.Bootstrap(bootstrapCtx); err != nil {
		slog.Error("bootstrap resync failed; continuing with periodic reconciliation", "error", err)
	}
	cancelBootstrap()

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go manager.RunScheduler(schedulerCtx)

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering discord run loop")
		if err := dc.Run(); err != nil {
			slog.Error("discord run failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}
}
