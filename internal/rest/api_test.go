package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/pkg/testutil"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var adminKey = []byte("test-admin-key")

type mockBot struct {
	handleUpdate func(ctx context.Context, u chat.Update) error
}

func (m *mockBot) HandleUpdate(ctx context.Context, u chat.Update) error {
	return m.handleUpdate(ctx, u)
}

type mockStore struct {
	leaderboard func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	stats       func(ctx context.Context) (store.StatsResponse, error)
}

func (m *mockStore) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	return m.leaderboard(ctx, limit)
}

func (m *mockStore) Stats(ctx context.Context) (store.StatsResponse, error) {
	return m.stats(ctx)
}

func newTestAPI(bot *mockBot, st *mockStore, secret string) *API {
	return NewAPI(bot, st, Config{WebhookSecret: secret, AdminKey: adminKey})
}

func webhookRequest(t *testing.T, payload, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	if secret != "" {
		req.Header.Set(secretTokenHeader, secret)
	}
	return req
}

const messagePayload = `{
	"update_id": 1,
	"message": {
		"message_id": 5,
		"from": {"id": 7, "username": "alice"},
		"chat": {"id": 70},
		"text": "/start"
	}
}`

func TestWebhook_DispatchesUpdate(t *testing.T) {
	var handled []chat.Update
	bot := &mockBot{handleUpdate: func(ctx context.Context, u chat.Update) error {
		handled = append(handled, u)
		return nil
	}}
	api := newTestAPI(bot, &mockStore{}, "hook-secret")

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, webhookRequest(t, messagePayload, "hook-secret"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, handled, 1)
	assert.Equal(t, int64(7), handled[0].UserID)
	assert.Equal(t, "/start", handled[0].Text)

	resp := testutil.ParseResponse[webhookResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
}

func TestWebhook_RejectsWrongSecret(t *testing.T) {
	bot := &mockBot{handleUpdate: func(ctx context.Context, u chat.Update) error {
		t.Fatal("update must not be dispatched without a valid secret")
		return nil
	}}
	api := newTestAPI(bot, &mockStore{}, "hook-secret")

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, webhookRequest(t, messagePayload, "wrong"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_AcknowledgesUnsupportedUpdate(t *testing.T) {
	api := newTestAPI(&mockBot{}, &mockStore{}, "")

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, webhookRequest(t, `{"update_id":2,"edited_message":{"message_id":1}}`, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := testutil.ParseResponse[webhookResponse](t, rec)
	assert.Equal(t, "ignored", resp.Status)
}

func TestWebhook_RejectsMalformedPayload(t *testing.T) {
	api := newTestAPI(&mockBot{}, &mockStore{}, "")

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, webhookRequest(t, "{", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_HandlerFailureIsGeneric(t *testing.T) {
	bot := &mockBot{handleUpdate: func(ctx context.Context, u chat.Update) error {
		return errors.New("pq: connection refused")
	}}
	api := newTestAPI(bot, &mockStore{}, "")

	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, webhookRequest(t, messagePayload, ""))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(adminKey)
	require.NoError(t, err)
	return token
}

func TestAdminLeaderboard(t *testing.T) {
	st := &mockStore{leaderboard: func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
		assert.Equal(t, 5, limit)
		return []model.LeaderboardEntry{
			{UserID: 7, Username: "alice", Contributions: 10, Votes: 20, Score: 12},
		}, nil
	}}
	api := newTestAPI(&mockBot{}, st, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/leaderboard?limit=5", nil)
	req.Header.Set("Authorization", adminToken(t))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := testutil.ParseResponse[leaderboardResponse](t, rec)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "alice", resp.Entries[0].Username)
	assert.Equal(t, 12.0, resp.Entries[0].Score)
}

func TestAdminLeaderboard_RequiresToken(t *testing.T) {
	api := newTestAPI(&mockBot{}, &mockStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/leaderboard", nil)
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLeaderboard_InvalidLimit(t *testing.T) {
	api := newTestAPI(&mockBot{}, &mockStore{}, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/leaderboard?limit=zero", nil)
	req.Header.Set("Authorization", adminToken(t))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminStats(t *testing.T) {
	st := &mockStore{stats: func(ctx context.Context) (store.StatsResponse, error) {
		return store.StatsResponse{
			Users:           3,
			OriginalTexts:   100,
			TranslatedTexts: 40,
			Translations:    42,
			Votes:           17,
		}, nil
	}}
	api := newTestAPI(&mockBot{}, st, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", adminToken(t))
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := testutil.ParseResponse[statsResponse](t, rec)
	assert.Equal(t, int64(3), resp.Users)
	assert.Equal(t, int64(100), resp.OriginalTexts)
	assert.Equal(t, int64(42), resp.Translations)
}
