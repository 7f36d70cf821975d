package model

import "time"

type Lang string

const (
	English Lang = "en"
	Burmese Lang = "my"
)

// OriginalText is a source-language sentence awaiting translation.
// Immutable once created except for the Translated flag, which flips
// false -> true exactly once when the first translation is saved.
type OriginalText struct {
	ID         string
	Lang       Lang
	Text       string
	Translated bool
}

// Translation is one user's rendering of an original text. A user may
// submit at most one translation per original text.
type Translation struct {
	ID             string
	OriginalTextID string
	UserID         int64
	Lang           Lang
	Text           string
	Voted          bool
}

// Vote is a 1..5 quality score on a translation, at most one per
// (translation, user) pair.
type Vote struct {
	ID            int64
	TranslationID string
	UserID        int64
	Score         int
}

type User struct {
	ID                int64
	Username          string
	ContributionCount int64
	VoteCount         int64
}

type LeaderboardEntry struct {
	UserID        int64
	Username      string
	Contributions int64
	Votes         int64
	Score         float64
}

// Session is the per-user conversational state. It lives in the
// session store keyed by user id and is never deleted; /stop only
// flips flags. The zero value is a valid brand-new session.
type Session struct {
	ContributeMode       bool          `json:"contribute_mode"`
	AutoContribute       bool          `json:"auto_contribute"`
	AutoVote             bool          `json:"auto_vote"`
	Paused               bool          `json:"paused"`
	SawOnboarding        bool          `json:"saw_onboarding"`
	PendingTextID        string        `json:"pending_text_id,omitempty"`
	PendingTranslationID string        `json:"pending_translation_id,omitempty"`
	LastInteractionAt    time.Time     `json:"last_interaction_at"`
	LastSessionStartAt   time.Time     `json:"last_session_start_at"`
	AvgSessionInterval   time.Duration `json:"avg_session_interval"`
	LastReminderAt       time.Time     `json:"last_reminder_at"`
}
