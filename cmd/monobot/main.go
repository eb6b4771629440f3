package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"monobot/core/database"
	"monobot/core/logger"
	tg "monobot/core/telegram"
	"monobot/internal/bot"
	"monobot/internal/bot/flow"
	"monobot/internal/config"
	"monobot/internal/health"
	"monobot/internal/monobank"
	"monobot/internal/service"
	"monobot/internal/session"
	"monobot/internal/storage"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := logger.InitLogger(&cfg.Config); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.L.LogAttrs(logger.Background(), slog.LevelError, "db.connect_failed",
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.L.LogAttrs(logger.Background(), slog.LevelError, "db.migrate_failed",
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}

	repo := storage.NewRepo(db)
	cache := session.NewCache(repo.GetByTelegramID)
	users := service.NewUsers(repo, cache)

	bankOpts := []monobank.Option{}
	if cfg.Monobank.BaseURL != "" {
		bankOpts = append(bankOpts, monobank.WithBaseURL(cfg.Monobank.BaseURL))
	}
	if cfg.Monobank.TimeoutSeconds > 0 {
		bankOpts = append(bankOpts, monobank.WithTimeout(time.Duration(cfg.Monobank.TimeoutSeconds)*time.Second))
	}
	bank := monobank.NewClient(bankOpts...)

	app := bot.NewApp(cfg, flow.New(users, bank), cache)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		srv := health.NewServer(cfg.Health.Listen, cfg.Logging.Profile)
		if err := srv.Run(ctx); err != nil {
			logger.L.LogAttrs(logger.Background(), slog.LevelError, "health.failed",
				slog.String("err", err.Error()),
			)
		}
	}()

	if err := tg.RunTelegram(ctx, app.TelegramRunOptions()); err != nil {
		logger.L.LogAttrs(logger.Background(), slog.LevelError, "bot.failed",
			slog.String("err", err.Error()),
		)
		os.Exit(1)
	}

	logger.L.LogAttrs(logger.Background(), slog.LevelInfo, "shutdown",
		slog.String("status", "ok"),
	)
}
