package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/catalog"
	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/session"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type mockStore struct {
	ensureUser         func(ctx context.Context, r store.EnsureUserRequest) error
	getUser            func(ctx context.Context, userID int64) (model.User, error)
	insertOriginalText func(ctx context.Context, r store.InsertOriginalTextRequest) error
	getOriginalText    func(ctx context.Context, textID string) (model.OriginalText, error)
	getTranslation     func(ctx context.Context, translationID string) (model.Translation, error)
	claimText          func(ctx context.Context) (model.OriginalText, error)
	claimTranslation   func(ctx context.Context, r store.ClaimTranslationRequest) (model.Translation, error)
	submitTranslation  func(ctx context.Context, r store.SubmitTranslationRequest) (store.SubmitTranslationResponse, error)
	submitVote         func(ctx context.Context, r store.SubmitVoteRequest) (store.SubmitVoteResponse, error)
	leaderboard        func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	stats              func(ctx context.Context) (store.StatsResponse, error)
}

func (m *mockStore) EnsureUser(ctx context.Context, r store.EnsureUserRequest) error {
	return m.ensureUser(ctx, r)
}

func (m *mockStore) GetUser(ctx context.Context, userID int64) (model.User, error) {
	return m.getUser(ctx, userID)
}

func (m *mockStore) InsertOriginalText(ctx context.Context, r store.InsertOriginalTextRequest) error {
	return m.insertOriginalText(ctx, r)
}

func (m *mockStore) GetOriginalText(ctx context.Context, textID string) (model.OriginalText, error) {
	return m.getOriginalText(ctx, textID)
}

func (m *mockStore) GetTranslation(ctx context.Context, translationID string) (model.Translation, error) {
	return m.getTranslation(ctx, translationID)
}

func (m *mockStore) ClaimRandomUntranslatedText(ctx context.Context) (model.OriginalText, error) {
	return m.claimText(ctx)
}

func (m *mockStore) ClaimRandomUnvotedTranslation(ctx context.Context, r store.ClaimTranslationRequest) (model.Translation, error) {
	return m.claimTranslation(ctx, r)
}

func (m *mockStore) SubmitTranslation(ctx context.Context, r store.SubmitTranslationRequest) (store.SubmitTranslationResponse, error) {
	return m.submitTranslation(ctx, r)
}

func (m *mockStore) SubmitVote(ctx context.Context, r store.SubmitVoteRequest) (store.SubmitVoteResponse, error) {
	return m.submitVote(ctx, r)
}

func (m *mockStore) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	return m.leaderboard(ctx, limit)
}

func (m *mockStore) Stats(ctx context.Context) (store.StatsResponse, error) {
	return m.stats(ctx)
}

type mockSender struct {
	sent    []chat.Message
	cleared []int64
	sendErr error
}

func (m *mockSender) Send(ctx context.Context, msg chat.Message) error {
	m.sent = append(m.sent, msg)
	return m.sendErr
}

func (m *mockSender) ClearButtons(ctx context.Context, chatID, messageID int64) error {
	m.cleared = append(m.cleared, messageID)
	return nil
}

func (m *mockSender) last(t *testing.T) chat.Message {
	t.Helper()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type fakeSessions struct {
	m map[int64]model.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{m: make(map[int64]model.Session)}
}

func (f *fakeSessions) Get(ctx context.Context, userID int64) (model.Session, error) {
	return f.m[userID], nil
}

func (f *fakeSessions) Put(ctx context.Context, userID int64, s model.Session) error {
	f.m[userID] = s
	return nil
}

func (f *fakeSessions) ScanUserIDs(ctx context.Context, cursor uint64, count int64) ([]int64, uint64, error) {
	ids := make([]int64, 0, len(f.m))
	for id := range f.m {
		ids = append(ids, id)
	}
	return ids, 0, nil
}

type fixture struct {
	bot      *Bot
	store    *mockStore
	sender   *mockSender
	sessions *fakeSessions
}

func newFixture(cfg BotConfig) *fixture {
	ms := &mockStore{
		ensureUser: func(ctx context.Context, r store.EnsureUserRequest) error { return nil },
	}
	sender := &mockSender{}
	sessions := newFakeSessions()

	bot := NewBot(ms, sessions, session.NewLocks(), sender, catalog.Default(), cfg)
	bot.now = func() time.Time { return testNow }

	return &fixture{bot: bot, store: ms, sender: sender, sessions: sessions}
}

func update(text string) chat.Update {
	return chat.Update{UserID: 7, Username: "alice", ChatID: 70, MessageID: 5, Text: text}
}

func callback(data string) chat.Update {
	return chat.Update{UserID: 7, Username: "alice", ChatID: 70, MessageID: 5, Callback: data}
}

func TestStart_SendsWelcome(t *testing.T) {
	f := newFixture(BotConfig{})
	var ensured []store.EnsureUserRequest
	f.store.ensureUser = func(ctx context.Context, r store.EnsureUserRequest) error {
		ensured = append(ensured, r)
		return nil
	}

	err := f.bot.HandleUpdate(context.Background(), update("/start"))

	require.NoError(t, err)
	assert.Contains(t, f.sender.last(t).Text, "Welcome")
	require.Contains(t, ensured, store.EnsureUserRequest{UserID: 7, Username: "alice"})
}

func TestStop_PausesAndDisablesAutoAdvance(t *testing.T) {
	f := newFixture(BotConfig{})
	f.sessions.m[7] = model.Session{AutoContribute: true, AutoVote: true}

	err := f.bot.HandleUpdate(context.Background(), update("/stop"))

	require.NoError(t, err)
	s := f.sessions.m[7]
	assert.False(t, s.AutoContribute)
	assert.False(t, s.AutoVote)
	assert.True(t, s.Paused)
	assert.Contains(t, f.sender.last(t).Text, "/contribute")
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(BotConfig{})
	f.store.leaderboard = func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
		assert.Equal(t, 10, limit)
		return []model.LeaderboardEntry{
			{Username: "alice", Contributions: 10, Votes: 20, Score: 12},
			{Username: "bob", Contributions: 5, Score: 5},
		}, nil
	}

	err := f.bot.HandleUpdate(context.Background(), update("/leaderboard"))

	require.NoError(t, err)
	msg := f.sender.last(t).Text
	assert.Contains(t, msg, "1. alice: 12.0 points")
	assert.Contains(t, msg, "2. bob: 5.0 points")
	assert.Less(t, strings.Index(msg, "alice"), strings.Index(msg, "bob"))
}

func TestLeaderboard_Empty(t *testing.T) {
	f := newFixture(BotConfig{})
	f.store.leaderboard = func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
		return nil, nil
	}

	err := f.bot.HandleUpdate(context.Background(), update("/leaderboard"))

	require.NoError(t, err)
	assert.Contains(t, f.sender.last(t).Text, "No contributions")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(BotConfig{})

	err := f.bot.HandleUpdate(context.Background(), update("/frobnicate"))

	require.NoError(t, err)
	assert.Contains(t, f.sender.last(t).Text, "provided commands")
}

func TestTextOutsideContributeMode(t *testing.T) {
	f := newFixture(BotConfig{})

	err := f.bot.HandleUpdate(context.Background(), update("hello bot"))

	require.NoError(t, err)
	assert.Contains(t, f.sender.last(t).Text, "provided commands")
}

func TestUnknownCallback(t *testing.T) {
	f := newFixture(BotConfig{})

	err := f.bot.HandleUpdate(context.Background(), callback("launch_rockets"))

	require.NoError(t, err)
	assert.Contains(t, f.sender.last(t).Text, "error occurred")
}

func TestHandleUpdate_RecordsInteraction(t *testing.T) {
	f := newFixture(BotConfig{SessionGapThreshold: time.Hour})

	err := f.bot.HandleUpdate(context.Background(), update("/start"))

	require.NoError(t, err)
	s := f.sessions.m[7]
	assert.Equal(t, testNow, s.LastInteractionAt)
	assert.Equal(t, testNow, s.LastSessionStartAt)
}

func TestStoreFailure_SendsGenericMessage(t *testing.T) {
	f := newFixture(BotConfig{})
	f.store.leaderboard = func(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
		return nil, errors.New("connection refused")
	}

	err := f.bot.HandleUpdate(context.Background(), update("/leaderboard"))

	require.Error(t, err)
	msg := f.sender.last(t).Text
	assert.Contains(t, msg, "error occurred")
	assert.NotContains(t, msg, "connection refused", "internal error text must never reach the user")
}

func TestCommand_StripsBotName(t *testing.T) {
	f := newFixture(BotConfig{})

	err := f.bot.HandleUpdate(context.Background(), update("/start@EchopodBot"))

	require.NoError(t, err)
	assert.Contains(t, f.sender.last(t).Text, "Welcome")
}
