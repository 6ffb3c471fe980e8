package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/quizbot/internal/ai"
	"github.com/example/quizbot/internal/bot"
	"github.com/example/quizbot/internal/config"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/health"
	"github.com/example/quizbot/internal/scheduler"
	"github.com/example/quizbot/internal/session"
	"github.com/example/quizbot/internal/stats"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env необязателен, переменные окружения имеют приоритет
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Bot exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Bot stopped successfully")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Контекст отменяется по Ctrl+C или SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Подключаемся к базе данных
	db, err := database.Connect(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store := database.NewStore(db)
	defer store.Close()

	checks := []health.Check{{Name: "database", Pinger: store}}

	sessions, sweeper, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	if rs, ok := sessions.(*session.RedisStore); ok {
		checks = append(checks, health.Check{Name: "redis", Pinger: rs})
	}

	completer, err := newCompleter(ctx, cfg.Generation)
	if err != nil {
		return err
	}
	generator := ai.NewGenerator(completer, cfg.Generation.Attempts, cfg.Generation.RetryDelay, logger)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("failed to create bot API: %w", err)
	}

	b := bot.New(api, bot.Options{
		Store:            store,
		Sessions:         sessions,
		Generator:        generator,
		Recorder:         stats.NewRecorder(store, logger),
		Admins:           cfg.Admins,
		ProgressInterval: cfg.Generation.ProgressInterval,
		Logger:           logger,
	})

	// Redis сам удаляет устаревшие сессии по TTL
	if sweeper != nil {
		sched := scheduler.New(sweeper, cfg.Session.SweepInterval, cfg.Session.TTL, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	if cfg.HealthAddr != "" {
		srv := health.Server(cfg.HealthAddr, health.NewHandler(5*time.Second, checks...))
		go func() {
			logger.Info("Health server listening", "addr", cfg.HealthAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Health server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Health server shutdown failed", "error", err)
			}
		}()
	}

	logger.Info("Bot started. Press Ctrl+C to stop.", "provider", cfg.Generation.Provider, "sessions", cfg.Session.Store)
	return b.Start(ctx)
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, scheduler.Sweeper, error) {
	if cfg.Store == config.SessionStoreRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rs := session.NewRedisStore(client, cfg.TTL)
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return rs, nil, nil
	}
	ms := session.NewMemoryStore()
	return ms, ms, nil
}

func newCompleter(ctx context.Context, cfg config.GenerationConfig) (ai.Completer, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
	default:
		return ai.NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterURL, cfg.OpenRouterModel, cfg.Timeout)
	}
}
