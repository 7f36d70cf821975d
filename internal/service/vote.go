package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/store"
)

// sendNextVote offers a translation with five score buttons. A pending
// offer the user never answered is served again; only then is a fresh
// random unscored translation by someone else claimed.
func (b *Bot) sendNextVote(ctx context.Context, s *model.Session, u chat.Update) error {
	s.AutoVote = true
	s.Paused = false

	tr, err := b.pendingVote(ctx, s, u)
	if err != nil {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return err
	}

	if tr.ID == "" {
		tr, err = b.store.ClaimRandomUnvotedTranslation(ctx, store.ClaimTranslationRequest{ExcludeUserID: u.UserID})
		if errors.Is(err, store.ErrNoWork) {
			s.PendingTranslationID = ""
			b.send(ctx, b.textMessage(u.ChatID, "vote.none"))
			return nil
		}
		if err != nil {
			b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
			return fmt.Errorf("claim unvoted translation: %w", err)
		}
	}

	source, err := b.texts.get(ctx, b.store, tr.OriginalTextID)
	if err != nil {
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("get original text %s: %w", tr.OriginalTextID, err)
	}

	s.PendingTranslationID = tr.ID

	row := make([]chat.Button, 0, 5)
	for score := 1; score <= 5; score++ {
		row = append(row, chat.Button{
			Label: strconv.Itoa(score),
			Data:  fmt.Sprintf("%s%s_%d", cbVotePrefix, tr.ID, score),
		})
	}

	b.send(ctx, chat.Message{
		ChatID:  u.ChatID,
		Text:    b.messages.Textf("vote.prompt", source.Text, tr.Text),
		Buttons: [][]chat.Button{row},
	})
	return nil
}

// pendingVote looks up the translation already offered to this user,
// so an unanswered prompt is not stranded unscored. A zero translation
// means a fresh one must be claimed.
func (b *Bot) pendingVote(ctx context.Context, s *model.Session, u chat.Update) (model.Translation, error) {
	if s.PendingTranslationID == "" {
		return model.Translation{}, nil
	}

	tr, err := b.store.GetTranslation(ctx, s.PendingTranslationID)
	if errors.Is(err, store.ErrNotFound) {
		s.PendingTranslationID = ""
		return model.Translation{}, nil
	}
	if err != nil {
		return model.Translation{}, fmt.Errorf("get pending translation %s: %w", s.PendingTranslationID, err)
	}

	if tr.Voted || tr.UserID == u.UserID {
		s.PendingTranslationID = ""
		return model.Translation{}, nil
	}

	return tr, nil
}

// saveVote records the pressed score. Duplicate votes are logged and
// acknowledged like a success; a vote for a translation that no
// longer exists gets the generic error without failing the handler.
func (b *Bot) saveVote(ctx context.Context, s *model.Session, u chat.Update) error {
	translationID, score, err := parseVoteCallback(u.Callback)
	if err != nil {
		slog.Warn("malformed vote callback", "user_id", u.UserID, "callback", u.Callback)
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return nil
	}

	b.clearButtons(ctx, u)

	resp, err := b.store.SubmitVote(ctx, store.SubmitVoteRequest{
		TranslationID: translationID,
		UserID:        u.UserID,
		Score:         score,
	})
	switch {
	case errors.Is(err, store.ErrExists):
		slog.Warn("duplicate vote", "user_id", u.UserID, "translation_id", translationID)
	case errors.Is(err, store.ErrNotFound):
		slog.Warn("vote for unknown translation", "user_id", u.UserID, "translation_id", translationID)
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return nil
	case err != nil:
		b.send(ctx, b.textMessage(u.ChatID, "error.retry"))
		return fmt.Errorf("submit vote: %w", err)
	}

	s.PendingTranslationID = ""

	if err == nil && hitMilestone(b.cfg.VoteMilestones, resp.TodayCount) {
		b.send(ctx, chat.Message{
			ChatID:  u.ChatID,
			Text:    b.messages.Textf("vote.milestone", resp.TodayCount),
			Buttons: [][]chat.Button{{{Label: b.messages.Text("button.continue_voting"), Data: cbContinueVoting}}},
		})
		return nil
	}

	b.send(ctx, b.textMessage(u.ChatID, "vote.thanks"))

	if s.AutoVote {
		return b.sendNextVote(ctx, s, u)
	}
	return nil
}

func parseVoteCallback(data string) (translationID string, score int, err error) {
	rest := strings.TrimPrefix(data, cbVotePrefix)
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		return "", 0, fmt.Errorf("invalid vote callback %q", data)
	}

	score, err = strconv.Atoi(rest[idx+1:])
	if err != nil || score < 1 || score > 5 {
		return "", 0, fmt.Errorf("invalid vote callback %q", data)
	}

	return rest[:idx], score, nil
}
