// Package rest exposes the HTTP surface: the chat webhook and a small
// JWT-guarded admin API for corpus operators.
package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/httpx"
	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/middleware"
	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/router"
	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/serr"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

type botService interface {
	HandleUpdate(ctx context.Context, u chat.Update) error
}

type adminStore interface {
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Stats(ctx context.Context) (store.StatsResponse, error)
}

type Config struct {
	// WebhookSecret must match the secret token registered with the
	// chat platform. Empty disables the check.
	WebhookSecret string

	// AdminKey signs the admin API bearer tokens.
	AdminKey []byte
}

type API struct {
	bot    botService
	store  adminStore
	secret string
	rt     *router.Router
}

func NewAPI(bot botService, st adminStore, cfg Config) *API {
	api := &API{
		bot:    bot,
		store:  st,
		secret: cfg.WebhookSecret,
		rt:     router.New(),
	}

	api.mount(cfg)
	return api
}

func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.rt.ServeHTTP(w, r)
}

func (api *API) mount(cfg Config) {
	admin := api.rt.SubRouter("/admin")
	admin.Use(middleware.Auth(cfg.AdminKey))
	admin.HandleFunc("GET /leaderboard", api.handleLeaderboard)
	admin.HandleFunc("GET /stats", api.handleStats)

	api.rt.HandleFunc("POST /webhook", api.handleWebhook)
	api.rt.Use(middleware.Log(), middleware.Recover())
}

type webhookResponse struct {
	Status string `json:"status"`
}

func (api *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if api.secret != "" && r.Header.Get(secretTokenHeader) != api.secret {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	u, err := chat.ParseTelegramUpdate(r.Body)
	if errors.Is(err, chat.ErrUnsupported) {
		// Acknowledge so the platform does not redeliver forever.
		httpx.WriteJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}
	if err != nil {
		httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusBadRequest, "invalid update payload"))
		return
	}

	if err := api.bot.HandleUpdate(r.Context(), u); err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, webhookResponse{Status: "ok"})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type leaderboardEntry struct {
	UserID        int64   `json:"user_id"`
	Username      string  `json:"username"`
	Contributions int64   `json:"contributions"`
	Votes         int64   `json:"votes"`
	Score         float64 `json:"score"`
}

type leaderboardResponse struct {
	Entries []leaderboardEntry `json:"entries"`
}

func (api *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httpx.HandleErr(w, r, serr.NewServiceError(err, http.StatusBadRequest, "invalid limit parameter"))
			return
		}
		limit = parsed
	}

	entries, err := api.store.Leaderboard(r.Context(), limit)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	resp := leaderboardResponse{Entries: make([]leaderboardEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, leaderboardEntry{
			UserID:        e.UserID,
			Username:      e.Username,
			Contributions: e.Contributions,
			Votes:         e.Votes,
			Score:         e.Score,
		})
	}

	err = httpx.WriteJSON(w, http.StatusOK, resp)
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}

type statsResponse struct {
	Users             int64 `json:"users"`
	OriginalTexts     int64 `json:"original_texts"`
	TranslatedTexts   int64 `json:"translated_texts"`
	Translations      int64 `json:"translations"`
	VotedTranslations int64 `json:"voted_translations"`
	Votes             int64 `json:"votes"`
}

func (api *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := api.store.Stats(r.Context())
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}

	err = httpx.WriteJSON(w, http.StatusOK, statsResponse{
		Users:             stats.Users,
		OriginalTexts:     stats.OriginalTexts,
		TranslatedTexts:   stats.TranslatedTexts,
		Translations:      stats.Translations,
		VotedTranslations: stats.VotedTranslations,
		Votes:             stats.Votes,
	})
	if err != nil {
		httpx.HandleErr(w, r, err)
		return
	}
}
