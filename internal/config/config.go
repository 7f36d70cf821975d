package config

import (
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/env"
)

type Config struct {
	HTTP     httpConfig
	DB       dbConfig
	Redis    redisConfig
	Bot      botConfig
	Reminder reminderConfig
	Admin    adminConfig
}

type httpConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type dbConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	MigrationsDir string
}

type redisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type botConfig struct {
	Token                  string
	WebhookSecret          string
	SendTimeout            time.Duration
	SessionGapThreshold    time.Duration
	ContributionMilestones []int
	VoteMilestones         []int
	LeaderboardSize        int
	TextCacheSize          int64
	TextCacheMaxCost       int64
	CatalogPath            string
}

type reminderConfig struct {
	Period       time.Duration
	Multiplier   float64
	DefaultAvg   time.Duration
	Cooldown     time.Duration
	ScanPageSize int64
}

type adminConfig struct {
	JWTSecret string
}

func FromEnv() Config {
	return Config{
		HTTP: httpConfig{
			ListenAddr:      env.String("HTTP_LISTEN_ADDR", ":8080"),
			ReadTimeout:     env.Duration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.Duration("HTTP_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     env.Duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: env.Duration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		DB: dbConfig{
			Host:          env.String("DB_HOST", "localhost"),
			Port:          env.Int("DB_PORT", 5432),
			User:          env.String("DB_USER", "postgres"),
			Password:      env.RequireString("DB_PASSWORD"),
			Name:          env.String("DB_NAME", "echopod"),
			MigrationsDir: env.String("DB_MIGRATIONS_DIR", "db/migrations"),
		},
		Redis: redisConfig{
			Host:     env.String("REDIS_HOST", "localhost"),
			Port:     env.Int("REDIS_PORT", 6379),
			Password: env.String("REDIS_PASSWORD", ""),
			DB:       env.Int("REDIS_DB", 0),
		},
		Bot: botConfig{
			Token:                  env.RequireString("BOT_TOKEN"),
			WebhookSecret:          env.String("BOT_WEBHOOK_SECRET", ""),
			SendTimeout:            env.Duration("BOT_SEND_TIMEOUT", 10*time.Second),
			SessionGapThreshold:    env.Duration("BOT_SESSION_GAP_THRESHOLD", time.Hour),
			ContributionMilestones: env.Ints("BOT_CONTRIBUTION_MILESTONES", []int{10, 30, 50, 100}),
			VoteMilestones:         env.Ints("BOT_VOTE_MILESTONES", []int{25, 50, 100, 200}),
			LeaderboardSize:        env.Int("BOT_LEADERBOARD_SIZE", 10),
			TextCacheSize:          env.Int64("BOT_TEXT_CACHE_SIZE", 4096),
			TextCacheMaxCost:       env.Int64("BOT_TEXT_CACHE_MAX_COST", 4096),
			CatalogPath:            env.String("BOT_CATALOG_PATH", ""),
		},
		Reminder: reminderConfig{
			Period:       env.Duration("REMINDER_PERIOD", time.Hour),
			Multiplier:   env.Float64("REMINDER_MULTIPLIER", 1.5),
			DefaultAvg:   env.Duration("REMINDER_DEFAULT_AVG", 24*time.Hour),
			Cooldown:     env.Duration("REMINDER_COOLDOWN", 12*time.Hour),
			ScanPageSize: env.Int64("REMINDER_SCAN_PAGE_SIZE", 100),
		},
		Admin: adminConfig{
			JWTSecret: env.RequireString("ADMIN_JWT_SECRET"),
		},
	}
}
