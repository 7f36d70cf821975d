package store

import "github.com/baseresearch/echopod-companion-chatbot/internal/model"

type EnsureUserRequest struct {
	UserID   int64
	Username string
}

type InsertOriginalTextRequest struct {
	TextID string
	Lang   model.Lang
	Text   string
}

type ClaimTranslationRequest struct {
	// ExcludeUserID keeps users from voting on their own translations.
	ExcludeUserID int64
}

type SubmitTranslationRequest struct {
	TranslationID  string
	OriginalTextID string
	UserID         int64
	Lang           model.Lang
	Text           string
}

type SubmitTranslationResponse struct {
	Translation model.Translation

	// TodayCount is the user's translation count for the current day
	// after this submission, read back atomically for milestone checks.
	TodayCount int64
}

type SubmitVoteRequest struct {
	TranslationID string
	UserID        int64
	Score         int
}

type SubmitVoteResponse struct {
	Vote model.Vote

	// TodayCount is the user's vote count for the current day after
	// this vote.
	TodayCount int64
}

type StatsResponse struct {
	Users             int64
	OriginalTexts     int64
	TranslatedTexts   int64
	Translations      int64
	VotedTranslations int64
	Votes             int64
}
