// Package reminder nudges dormant volunteers back. A periodic sweep
// walks every session and messages users whose absence exceeds their
// personal average return interval by a configured factor.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/catalog"
	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/session"
)

type Config struct {
	// Period is the wall-clock interval between sweeps.
	Period time.Duration

	// Multiplier scales the user's average return interval before the
	// user counts as overdue.
	Multiplier float64

	// DefaultAvg stands in for users without an interval estimate yet.
	DefaultAvg time.Duration

	// Cooldown is the minimum spacing between two reminders to the
	// same user, so a dormant user is not pinged on every sweep.
	Cooldown time.Duration

	// ScanPageSize bounds how many session keys one scan page returns.
	ScanPageSize int64
}

type Scheduler struct {
	sessions session.Store
	locks    *session.Locks
	sender   chat.Sender
	messages *catalog.Catalog
	cfg      Config

	now func() time.Time
}

// New wires the scheduler. The locks must be the same instance the
// event handlers use; the sweep updates sessions through them.
func New(sessions session.Store, locks *session.Locks, sender chat.Sender, messages *catalog.Catalog, cfg Config) *Scheduler {
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1.5
	}
	if cfg.DefaultAvg <= 0 {
		cfg.DefaultAvg = 24 * time.Hour
	}
	if cfg.ScanPageSize <= 0 {
		cfg.ScanPageSize = 100
	}

	return &Scheduler{
		sessions: sessions,
		locks:    locks,
		sender:   sender,
		messages: messages,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run sweeps on every tick until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	slog.Info("reminder scheduler started", "period", s.cfg.Period)
	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				slog.Error("reminder sweep failed", "error", err)
			}
		}
	}
}

// Sweep pages over all sessions and reminds every overdue user. Send
// failures are logged per user and never abort the rest of the sweep.
func (s *Scheduler) Sweep(ctx context.Context) error {
	now := s.now()
	var cursor uint64

	for {
		userIDs, next, err := s.sessions.ScanUserIDs(ctx, cursor, s.cfg.ScanPageSize)
		if err != nil {
			return fmt.Errorf("scan sessions: %w", err)
		}

		for _, userID := range userIDs {
			s.remindIfOverdue(ctx, userID, now)
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Scheduler) remindIfOverdue(ctx context.Context, userID int64, now time.Time) {
	// Hold the user's lock across the whole read-modify-write; a
	// command arriving mid-reminder (a /stop, say) queues behind it
	// instead of being overwritten by a stale session blob.
	mu := s.locks.Acquire(userID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		slog.Error("get session", "user_id", userID, "error", err)
		return
	}

	if !s.overdue(sess, now) {
		return
	}

	// Private chats share the user's id as the chat id.
	err = s.sender.Send(ctx, chat.Message{ChatID: userID, Text: s.messages.Text("reminder")})
	if err != nil {
		// Leave LastReminderAt untouched so the next sweep retries.
		slog.Error("send reminder", "user_id", userID, "error", err)
		return
	}

	sess.LastReminderAt = now
	if err := s.sessions.Put(ctx, userID, sess); err != nil {
		slog.Error("save session", "user_id", userID, "error", err)
	}
}

func (s *Scheduler) overdue(sess model.Session, now time.Time) bool {
	if sess.Paused || sess.LastSessionStartAt.IsZero() {
		return false
	}

	avg := sess.AvgSessionInterval
	if avg == 0 {
		avg = s.cfg.DefaultAvg
	}

	if now.Sub(sess.LastSessionStartAt) <= time.Duration(float64(avg)*s.cfg.Multiplier) {
		return false
	}

	if !sess.LastReminderAt.IsZero() && now.Sub(sess.LastReminderAt) < s.cfg.Cooldown {
		return false
	}

	return true
}
