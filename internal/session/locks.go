package session

import "sync"

// Locks hands out one mutex per user so every writer of a user's
// session (inbound event handling, the reminder sweep) serializes
// against the same lock. Locks are never evicted; one mutex per user
// seen since process start is cheap at this scale.
type Locks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[int64]*sync.Mutex)}
}

func (l *Locks) Acquire(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	mu, ok := l.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[userID] = mu
	}

	return mu
}
