package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/baseresearch/echopod-companion-chatbot/internal/catalog"
	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/config"
	"github.com/baseresearch/echopod-companion-chatbot/internal/reminder"
	"github.com/baseresearch/echopod-companion-chatbot/internal/rest"
	"github.com/baseresearch/echopod-companion-chatbot/internal/service"
	"github.com/baseresearch/echopod-companion-chatbot/internal/session"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func run(ctx context.Context) error {
	slog.Info("starting echopod bot")

	cfg := config.FromEnv()
	db, err := store.NewPostgresDB(store.PostgresConfig{
		Host:     cfg.DB.Host,
		Port:     strconv.Itoa(cfg.DB.Port),
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		DB:       cfg.DB.Name,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer db.Close()

	if err := runMigrations(db, cfg.DB.MigrationsDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	pgs := store.NewPostgresStore(db)

	sessions := session.NewRedis(session.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     strconv.Itoa(cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer sessions.Close()

	messages, err := loadCatalog(cfg.Bot.CatalogPath)
	if err != nil {
		return err
	}

	sender := chat.NewTelegram(chat.TelegramConfig{
		Token:   cfg.Bot.Token,
		Timeout: cfg.Bot.SendTimeout,
	})

	// One lock set shared by the handlers and the reminder sweep, so
	// all session writes for a user serialize against each other.
	locks := session.NewLocks()

	bot := service.NewBot(pgs, sessions, locks, sender, messages, service.BotConfig{
		SessionGapThreshold:    cfg.Bot.SessionGapThreshold,
		ContributionMilestones: cfg.Bot.ContributionMilestones,
		VoteMilestones:         cfg.Bot.VoteMilestones,
		LeaderboardSize:        cfg.Bot.LeaderboardSize,
		TextCacheSize:          cfg.Bot.TextCacheSize,
		TextCacheMaxCost:       cfg.Bot.TextCacheMaxCost,
	})

	scheduler := reminder.New(sessions, locks, sender, messages, reminder.Config{
		Period:       cfg.Reminder.Period,
		Multiplier:   cfg.Reminder.Multiplier,
		DefaultAvg:   cfg.Reminder.DefaultAvg,
		Cooldown:     cfg.Reminder.Cooldown,
		ScanPageSize: cfg.Reminder.ScanPageSize,
	})
	go scheduler.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	api := rest.NewAPI(bot, pgs, rest.Config{
		WebhookSecret: cfg.Bot.WebhookSecret,
		AdminKey:      []byte(cfg.Admin.JWTSecret),
	})
	mux.Handle("/", api)

	httpSrv := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		Handler:      mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runMigrations(db *sql.DB, folder string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance("file://"+folder, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}

	messages, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}

	return messages, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("echopod bot terminated with error", "error", err)
		os.Exit(1)
	}
}
