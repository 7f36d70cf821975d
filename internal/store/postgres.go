package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/lib/pq"
)

const (
	errUniqueViolation     pq.ErrorCode = "23505"
	errForeignKeyViolation pq.ErrorCode = "23503"
	errCheckViolation      pq.ErrorCode = "23514"
)

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
}

// PostgresStore implements DataStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresDB(cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DB))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureUser(ctx context.Context, r EnsureUserRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, username) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username`,
		r.UserID, r.Username)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT user_id, username, contribution_count, vote_count FROM users WHERE user_id = $1",
		userID)

	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.ContributionCount, &u.VoteCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}

		return model.User{}, fmt.Errorf("scan user: %w", err)
	}

	return u, nil
}

func (s *PostgresStore) InsertOriginalText(ctx context.Context, r InsertOriginalTextRequest) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO original_texts (text_id, lang, text) VALUES ($1, $2, $3)",
		r.TextID, r.Lang, r.Text)
	if err != nil {
		if isPqErr(err, errUniqueViolation) {
			return ErrExists
		}

		return fmt.Errorf("insert original text: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetOriginalText(ctx context.Context, textID string) (model.OriginalText, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT text_id, lang, text, translated FROM original_texts WHERE text_id = $1",
		textID)

	var t model.OriginalText
	err := row.Scan(&t.ID, &t.Lang, &t.Text, &t.Translated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OriginalText{}, ErrNotFound
		}

		return model.OriginalText{}, fmt.Errorf("scan original text: %w", err)
	}

	return t, nil
}

func (s *PostgresStore) GetTranslation(ctx context.Context, translationID string) (model.Translation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT translation_id, original_text_id, user_id, lang, text, voted
		 FROM translations WHERE translation_id = $1`,
		translationID)

	var t model.Translation
	err := row.Scan(&t.ID, &t.OriginalTextID, &t.UserID, &t.Lang, &t.Text, &t.Voted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Translation{}, ErrNotFound
		}

		return model.Translation{}, fmt.Errorf("scan translation: %w", err)
	}

	return t, nil
}

// ClaimRandomUntranslatedText samples uniformly over the untranslated
// worklist. The row is not locked; a concurrent submission for the
// same text is rejected later by the (original_text_id, user_id)
// uniqueness constraint.
func (s *PostgresStore) ClaimRandomUntranslatedText(ctx context.Context) (model.OriginalText, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT text_id, lang, text, translated
		 FROM original_texts
		 WHERE NOT translated
		 ORDER BY random()
		 LIMIT 1`)

	var t model.OriginalText
	err := row.Scan(&t.ID, &t.Lang, &t.Text, &t.Translated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.OriginalText{}, ErrNoWork
		}

		return model.OriginalText{}, fmt.Errorf("sample untranslated text: %w", err)
	}

	return t, nil
}

func (s *PostgresStore) ClaimRandomUnvotedTranslation(ctx context.Context, r ClaimTranslationRequest) (model.Translation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT translation_id, original_text_id, user_id, lang, text, voted
		 FROM translations
		 WHERE NOT voted AND user_id <> $1
		 ORDER BY random()
		 LIMIT 1`,
		r.ExcludeUserID)

	var t model.Translation
	err := row.Scan(&t.ID, &t.OriginalTextID, &t.UserID, &t.Lang, &t.Text, &t.Voted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Translation{}, ErrNoWork
		}

		return model.Translation{}, fmt.Errorf("sample unvoted translation: %w", err)
	}

	return t, nil
}

// SubmitTranslation writes the translation, marks the original text
// translated, and bumps the user's total and daily counters in one
// transaction. Returns ErrExists when the user already translated
// this text.
func (s *PostgresStore) SubmitTranslation(ctx context.Context, r SubmitTranslationRequest) (SubmitTranslationResponse, error) {
	var resp SubmitTranslationResponse

	err := s.withinTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO translations (translation_id, original_text_id, user_id, lang, text)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.TranslationID, r.OriginalTextID, r.UserID, r.Lang, r.Text)
		if err != nil {
			if isPqErr(err, errUniqueViolation) {
				return ErrExists
			}
			if isPqErr(err, errForeignKeyViolation) {
				return ErrNotFound
			}

			return fmt.Errorf("insert translation: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE original_texts SET translated = TRUE WHERE text_id = $1",
			r.OriginalTextID)
		if err != nil {
			return fmt.Errorf("mark text translated: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE users SET contribution_count = contribution_count + 1 WHERE user_id = $1",
			r.UserID)
		if err != nil {
			return fmt.Errorf("bump contribution count: %w", err)
		}

		row := tx.QueryRowContext(ctx,
			`INSERT INTO daily_activity (day, user_id, translations_count)
			 VALUES (CURRENT_DATE, $1, 1)
			 ON CONFLICT (day, user_id)
			 DO UPDATE SET translations_count = daily_activity.translations_count + 1
			 RETURNING translations_count`,
			r.UserID)
		if err := row.Scan(&resp.TodayCount); err != nil {
			return fmt.Errorf("bump daily translations: %w", err)
		}

		return nil
	})
	if err != nil {
		return SubmitTranslationResponse{}, err
	}

	resp.Translation = model.Translation{
		ID:             r.TranslationID,
		OriginalTextID: r.OriginalTextID,
		UserID:         r.UserID,
		Lang:           r.Lang,
		Text:           r.Text,
	}
	return resp, nil
}

// SubmitVote records the score, marks the translation voted, and bumps
// the user's total and daily counters in one transaction. Returns
// ErrExists when the user already voted on this translation.
func (s *PostgresStore) SubmitVote(ctx context.Context, r SubmitVoteRequest) (SubmitVoteResponse, error) {
	var resp SubmitVoteResponse

	err := s.withinTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"INSERT INTO votes (translation_id, user_id, score) VALUES ($1, $2, $3) RETURNING vote_id",
			r.TranslationID, r.UserID, r.Score)

		var voteID int64
		if err := row.Scan(&voteID); err != nil {
			if isPqErr(err, errUniqueViolation) {
				return ErrExists
			}
			if isPqErr(err, errForeignKeyViolation) {
				return ErrNotFound
			}
			if isPqErr(err, errCheckViolation) {
				return fmt.Errorf("score out of range: %w", err)
			}

			return fmt.Errorf("insert vote: %w", err)
		}

		_, err := tx.ExecContext(ctx,
			"UPDATE translations SET voted = TRUE WHERE translation_id = $1",
			r.TranslationID)
		if err != nil {
			return fmt.Errorf("mark translation voted: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE users SET vote_count = vote_count + 1 WHERE user_id = $1",
			r.UserID)
		if err != nil {
			return fmt.Errorf("bump vote count: %w", err)
		}

		dayRow := tx.QueryRowContext(ctx,
			`INSERT INTO daily_activity (day, user_id, votes_count)
			 VALUES (CURRENT_DATE, $1, 1)
			 ON CONFLICT (day, user_id)
			 DO UPDATE SET votes_count = daily_activity.votes_count + 1
			 RETURNING votes_count`,
			r.UserID)
		if err := dayRow.Scan(&resp.TodayCount); err != nil {
			return fmt.Errorf("bump daily votes: %w", err)
		}

		resp.Vote = model.Vote{
			ID:            voteID,
			TranslationID: r.TranslationID,
			UserID:        r.UserID,
			Score:         r.Score,
		}
		return nil
	})
	if err != nil {
		return SubmitVoteResponse{}, err
	}

	return resp, nil
}

// Leaderboard ranks users by contributions plus a tenth of their
// votes. Tie order is whatever the database returns.
func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, contribution_count, vote_count,
		        contribution_count + vote_count / 10.0 AS score
		 FROM users
		 ORDER BY score DESC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Contributions, &e.Votes, &e.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}

	return entries, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (StatsResponse, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT count(*) FROM users),
		   (SELECT count(*) FROM original_texts),
		   (SELECT count(*) FROM original_texts WHERE translated),
		   (SELECT count(*) FROM translations),
		   (SELECT count(*) FROM translations WHERE voted),
		   (SELECT count(*) FROM votes)`)

	var st StatsResponse
	err := row.Scan(
		&st.Users,
		&st.OriginalTexts,
		&st.TranslatedTexts,
		&st.Translations,
		&st.VotedTranslations,
		&st.Votes)
	if err != nil {
		return StatsResponse{}, fmt.Errorf("scan stats: %w", err)
	}

	return st, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) withinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback: %v after: %w", rbErr, err)
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func isPqErr(err error, code pq.ErrorCode) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return false
	}

	return pqErr.Code == code
}
