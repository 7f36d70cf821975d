// Package service implements the conversational state machine: command
// and callback dispatch, work hand-out, milestone messaging and the
// leaderboard. All transport and storage access goes through injected
// interfaces.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/catalog"
	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/engage"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/session"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
)

// Callback payloads round-trip through the chat transport: buttons
// carry them out, button presses bring them back.
const (
	cbSkipContribute     = "skip_contribute"
	cbStartVoting        = "start_voting"
	cbContinueContribute = "continue_contribute"
	cbContinueVoting     = "continue_voting"
	cbVotePrefix         = "vote_"
)

type Bot struct {
	store    store.DataStore
	sessions session.Store
	sender   chat.Sender
	messages *catalog.Catalog
	tracker  engage.Tracker
	texts    *textCache
	locks    *session.Locks
	cfg      BotConfig

	now func() time.Time
}

type BotConfig struct {
	SessionGapThreshold    time.Duration
	ContributionMilestones []int
	VoteMilestones         []int
	LeaderboardSize        int
	TextCacheSize          int64
	TextCacheMaxCost       int64
}

// NewBot wires the state machine. The locks must be the same instance
// every other session writer uses (the reminder sweep in particular),
// or per-user serialization falls apart.
func NewBot(ds store.DataStore, sessions session.Store, locks *session.Locks, sender chat.Sender, messages *catalog.Catalog, cfg BotConfig) *Bot {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 10
	}
	if cfg.TextCacheSize <= 0 {
		cfg.TextCacheSize = 1024
	}
	if cfg.TextCacheMaxCost <= 0 {
		cfg.TextCacheMaxCost = 1024
	}

	return &Bot{
		store:    ds,
		sessions: sessions,
		sender:   sender,
		messages: messages,
		tracker:  engage.Tracker{GapThreshold: cfg.SessionGapThreshold},
		texts:    newTextCache(cfg.TextCacheSize, cfg.TextCacheMaxCost),
		locks:    locks,
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleUpdate processes one inbound event end to end: it serializes
// per user, records the interaction for engagement tracking,
// dispatches to the matching handler and persists the mutated
// session. Store failures surface to the user as a generic retry
// message; flags already flipped before the failure stay flipped,
// which is safe because every command is an idempotent re-run.
func (b *Bot) HandleUpdate(ctx context.Context, u chat.Update) error {
	mu := b.locks.Acquire(u.UserID)
	mu.Lock()
	defer mu.Unlock()

	err := b.store.EnsureUser(ctx, store.EnsureUserRequest{UserID: u.UserID, Username: u.Username})
	if err != nil {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("ensure user %d: %w", u.UserID, err)
	}

	s, err := b.sessions.Get(ctx, u.UserID)
	if err != nil {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("get session for user %d: %w", u.UserID, err)
	}

	b.tracker.Observe(&s, b.now())

	dispatchErr := b.dispatch(ctx, &s, u)

	if err := b.sessions.Put(ctx, u.UserID, s); err != nil {
		return fmt.Errorf("save session for user %d: %w", u.UserID, err)
	}

	return dispatchErr
}

func (b *Bot) dispatch(ctx context.Context, s *model.Session, u chat.Update) error {
	if u.Callback != "" {
		return b.handleCallback(ctx, s, u)
	}
	if cmd, ok := command(u.Text); ok {
		return b.handleCommand(ctx, s, u, cmd)
	}

	return b.handleText(ctx, s, u)
}

func (b *Bot) handleCommand(ctx context.Context, s *model.Session, u chat.Update, cmd string) error {
	switch cmd {
	case "/start":
		b.send(ctx, b.textMessage(u.ChatID, "welcome"))
		return nil

	case "/contribute":
		return b.startContribution(ctx, s, u)

	case "/vote":
		if !s.SawOnboarding {
			s.SawOnboarding = true
			b.send(ctx, chat.Message{
				ChatID:  u.ChatID,
				Text:    b.messages.Text("vote.onboarding"),
				Buttons: [][]chat.Button{{{Label: b.messages.Text("button.ok"), Data: cbStartVoting}}},
			})
			return nil
		}
		return b.sendNextVote(ctx, s, u)

	case "/stop":
		s.AutoContribute = false
		s.AutoVote = false
		s.Paused = true
		b.send(ctx, b.textMessage(u.ChatID, "stop"))
		return nil

	case "/leaderboard":
		return b.sendLeaderboard(ctx, u)

	default:
		b.send(ctx, b.textMessage(u.ChatID, "use_commands"))
		return nil
	}
}

func (b *Bot) handleText(ctx context.Context, s *model.Session, u chat.Update) error {
	if !s.ContributeMode {
		b.send(ctx, b.textMessage(u.ChatID, "use_commands"))
		return nil
	}

	if s.PendingTextID == "" {
		s.ContributeMode = false
		b.send(ctx, b.textMessage(u.ChatID, "contribute.no_context"))
		return nil
	}

	return b.saveTranslation(ctx, s, u)
}

func (b *Bot) handleCallback(ctx context.Context, s *model.Session, u chat.Update) error {
	switch {
	case u.Callback == cbSkipContribute, u.Callback == cbContinueContribute:
		b.clearButtons(ctx, u)
		return b.startContribution(ctx, s, u)

	case u.Callback == cbStartVoting, u.Callback == cbContinueVoting:
		b.clearButtons(ctx, u)
		return b.sendNextVote(ctx, s, u)

	case strings.HasPrefix(u.Callback, cbVotePrefix):
		return b.saveVote(ctx, s, u)

	default:
		slog.Warn("malformed callback", "user_id", u.UserID, "callback", u.Callback)
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return nil
	}
}

func (b *Bot) sendLeaderboard(ctx context.Context, u chat.Update) error {
	entries, err := b.store.Leaderboard(ctx, b.cfg.LeaderboardSize)
	if err != nil {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("load leaderboard: %w", err)
	}

	if len(entries) == 0 {
		b.send(ctx, b.textMessage(u.ChatID, "leaderboard.empty"))
		return nil
	}

	var sb strings.Builder
	sb.WriteString(b.messages.Textf("leaderboard.header", len(entries)))
	for i, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(b.messages.Textf("leaderboard.row", i+1, e.Username, e.Score))
	}

	b.send(ctx, chat.Message{ChatID: u.ChatID, Text: sb.String()})
	return nil
}

// send delivers an outbound message. Delivery failures are logged and
// swallowed: a lost notification must not fail the handler.
func (b *Bot) send(ctx context.Context, msg chat.Message) {
	if err := b.sender.Send(ctx, msg); err != nil {
		slog.Error("send message", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) clearButtons(ctx context.Context, u chat.Update) {
	if err := b.sender.ClearButtons(ctx, u.ChatID, u.MessageID); err != nil {
		slog.Error("clear buttons", "chat_id", u.ChatID, "message_id", u.MessageID, "error", err)
	}
}

func (b *Bot) textMessage(chatID int64, key string) chat.Message {
	return chat.Message{ChatID: chatID, Text: b.messages.Text(key)}
}

func command(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", false
	}

	// Group chats suffix commands with the bot name: /vote@EchopodBot.
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd, true
}

func hitMilestone(milestones []int, count int64) bool {
	return slices.Contains(milestones, int(count))
}
