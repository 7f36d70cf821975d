package session

import (
	"context"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
)

// Store holds per-user conversational state. Get returns the zero
// session for users that never interacted; sessions are never deleted.
type Store interface {
	Get(ctx context.Context, userID int64) (model.Session, error)
	Put(ctx context.Context, userID int64, s model.Session) error

	// ScanUserIDs pages over all known session owners. A zero cursor
	// starts a scan; the returned cursor is zero once the scan is
	// complete. Used by the reminder sweep to avoid loading every
	// session at once.
	ScanUserIDs(ctx context.Context, cursor uint64, count int64) ([]int64, uint64, error)
}
