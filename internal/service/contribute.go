package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
	"github.com/google/uuid"
)

// startContribution claims a random untranslated sentence and offers
// it with a Skip button. Claiming is optimistic: the sentence is only
// reserved for the user by the uniqueness constraint at submission
// time.
func (b *Bot) startContribution(ctx context.Context, s *model.Session, u chat.Update) error {
	s.ContributeMode = true
	s.AutoContribute = true
	s.Paused = false

	text, err := b.store.ClaimRandomUntranslatedText(ctx)
	if errors.Is(err, store.ErrNoWork) {
		s.PendingTextID = ""
		b.send(ctx, b.textMessage(u.ChatID, "contribute.none"))
		return nil
	}
	if err != nil {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("claim untranslated text: %w", err)
	}

	s.PendingTextID = text.ID
	b.texts.put(text)

	b.send(ctx, chat.Message{
		ChatID:  u.ChatID,
		Text:    b.messages.Textf("contribute.prompt", text.Text),
		Buttons: [][]chat.Button{{{Label: b.messages.Text("button.skip"), Data: cbSkipContribute}}},
	})
	return nil
}

// saveTranslation stores the user's reply against the pending
// sentence. A duplicate submission is logged and acknowledged like a
// success so a replayed webhook delivery stays invisible to the user.
func (b *Bot) saveTranslation(ctx context.Context, s *model.Session, u chat.Update) error {
	resp, err := b.store.SubmitTranslation(ctx, store.SubmitTranslationRequest{
		TranslationID:  uuid.NewString(),
		OriginalTextID: s.PendingTextID,
		UserID:         u.UserID,
		Lang:           model.Burmese,
		Text:           u.Text,
	})
	if err != nil && !errors.Is(err, store.ErrExists) {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("submit translation: %w", err)
	}
	if errors.Is(err, store.ErrExists) {
		slog.Warn("duplicate translation submission", "user_id", u.UserID, "text_id", s.PendingTextID)
	}

	s.PendingTextID = ""
	s.ContributeMode = false

	if err == nil && hitMilestone(b.cfg.ContributionMilestones, resp.TodayCount) {
		b.send(ctx, chat.Message{
			ChatID:  u.ChatID,
			Text:    b.messages.Textf("contribute.milestone", resp.TodayCount),
			Buttons: [][]chat.Button{{{Label: b.messages.Text("button.continue_contribute"), Data: cbContinueContribute}}},
		})
		return nil
	}

	b.send(ctx, b.textMessage(u.ChatID, "contribute.thanks"))

	if s.AutoContribute {
		return b.startContribution(ctx, s, u)
	}
	return nil
}
