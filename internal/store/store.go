package store

import (
	"context"
	"errors"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
)

var (
	// ErrExists signals an idempotency violation: the (text, user) or
	// (translation, user) pair already has a row.
	ErrExists = errors.New("already exists")

	// ErrNotFound signals a missing row looked up by id.
	ErrNotFound = errors.New("not found")

	// ErrNoWork signals an empty work queue. User-visible, not a fault.
	ErrNoWork = errors.New("no work available")
)

// DataStore is the work store contract: original texts, translations,
// votes, user counters and daily activity. Claiming is implicit; the
// uniqueness constraints reject the loser of a claim race at
// submission time.
type DataStore interface {
	EnsureUser(ctx context.Context, r EnsureUserRequest) error
	GetUser(ctx context.Context, userID int64) (model.User, error)

	InsertOriginalText(ctx context.Context, r InsertOriginalTextRequest) error
	GetOriginalText(ctx context.Context, textID string) (model.OriginalText, error)
	GetTranslation(ctx context.Context, translationID string) (model.Translation, error)

	ClaimRandomUntranslatedText(ctx context.Context) (model.OriginalText, error)
	ClaimRandomUnvotedTranslation(ctx context.Context, r ClaimTranslationRequest) (model.Translation, error)

	SubmitTranslation(ctx context.Context, r SubmitTranslationRequest) (SubmitTranslationResponse, error)
	SubmitVote(ctx context.Context, r SubmitVoteRequest) (SubmitVoteResponse, error)

	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Stats(ctx context.Context) (StatsResponse, error)
}
