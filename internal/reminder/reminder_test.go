package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/catalog"
	"github.com/baseresearch/echopod-companion-chatbot/internal/chat"
	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/baseresearch/echopod-companion-chatbot/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fakeSessions struct {
	m map[int64]model.Session
}

func (f *fakeSessions) Get(ctx context.Context, userID int64) (model.Session, error) {
	return f.m[userID], nil
}

func (f *fakeSessions) Put(ctx context.Context, userID int64, s model.Session) error {
	f.m[userID] = s
	return nil
}

func (f *fakeSessions) ScanUserIDs(ctx context.Context, cursor uint64, count int64) ([]int64, uint64, error) {
	ids := make([]int64, 0, len(f.m))
	for id := range f.m {
		ids = append(ids, id)
	}
	return ids, 0, nil
}

type mockSender struct {
	sent    []chat.Message
	sendErr map[int64]error
	onSend  func(msg chat.Message)
}

func (m *mockSender) Send(ctx context.Context, msg chat.Message) error {
	if err := m.sendErr[msg.ChatID]; err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	if m.onSend != nil {
		m.onSend(msg)
	}
	return nil
}

func (m *mockSender) ClearButtons(ctx context.Context, chatID, messageID int64) error {
	return nil
}

func newScheduler(sessions *fakeSessions, sender *mockSender, cfg Config) *Scheduler {
	s := New(sessions, session.NewLocks(), sender, catalog.Default(), cfg)
	s.now = func() time.Time { return testNow }
	return s
}

func TestSweep_RemindsOverdueUser(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		// avg 1h, absent for 2h, multiplier 1.5: overdue.
		7: {LastSessionStartAt: testNow.Add(-2 * time.Hour), AvgSessionInterval: time.Hour},
	}}
	sender := &mockSender{}
	s := newScheduler(sessions, sender, Config{})

	require.NoError(t, s.Sweep(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(7), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "been a while")
	assert.Equal(t, testNow, sessions.m[7].LastReminderAt)
}

func TestSweep_SkipsUserWithinInterval(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		// avg 1h, absent for 1h: 1h <= 1.5h, not overdue.
		7: {LastSessionStartAt: testNow.Add(-time.Hour), AvgSessionInterval: time.Hour},
	}}
	sender := &mockSender{}
	s := newScheduler(sessions, sender, Config{})

	require.NoError(t, s.Sweep(context.Background()))

	assert.Empty(t, sender.sent)
}

func TestSweep_SkipsPausedUser(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		7: {Paused: true, LastSessionStartAt: testNow.Add(-100 * time.Hour), AvgSessionInterval: time.Hour},
	}}
	sender := &mockSender{}
	s := newScheduler(sessions, sender, Config{})

	require.NoError(t, s.Sweep(context.Background()))

	assert.Empty(t, sender.sent)
}

func TestSweep_UsesDefaultAverage(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		// No interval estimate yet: default 24h applies, cutoff 36h.
		1: {LastSessionStartAt: testNow.Add(-40 * time.Hour)},
		2: {LastSessionStartAt: testNow.Add(-30 * time.Hour)},
	}}
	sender := &mockSender{}
	s := newScheduler(sessions, sender, Config{})

	require.NoError(t, s.Sweep(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(1), sender.sent[0].ChatID)
}

func TestSweep_CooldownSuppressesRepeat(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		7: {LastSessionStartAt: testNow.Add(-10 * time.Hour), AvgSessionInterval: time.Hour},
	}}
	sender := &mockSender{}
	s := newScheduler(sessions, sender, Config{Cooldown: 6 * time.Hour})

	require.NoError(t, s.Sweep(context.Background()))
	require.NoError(t, s.Sweep(context.Background()))

	assert.Len(t, sender.sent, 1, "second sweep within the cooldown must stay silent")
}

func TestSweep_SendFailureDoesNotAbort(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		1: {LastSessionStartAt: testNow.Add(-10 * time.Hour), AvgSessionInterval: time.Hour},
		2: {LastSessionStartAt: testNow.Add(-10 * time.Hour), AvgSessionInterval: time.Hour},
	}}
	sender := &mockSender{sendErr: map[int64]error{1: errors.New("blocked by user")}}
	s := newScheduler(sessions, sender, Config{})

	require.NoError(t, s.Sweep(context.Background()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(2), sender.sent[0].ChatID)
	assert.True(t, sessions.m[1].LastReminderAt.IsZero(), "failed delivery must not count as reminded")
}

func TestSweep_StopDuringReminderSurvives(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{
		7: {LastSessionStartAt: testNow.Add(-2 * time.Hour), AvgSessionInterval: time.Hour, AutoVote: true},
	}}
	locks := session.NewLocks()

	// A /stop arriving while the sweep is mid-reminder queues behind
	// the same per-user lock, so the sweep's write cannot clobber it.
	var handler sync.WaitGroup
	sender := &mockSender{}
	sender.onSend = func(chat.Message) {
		handler.Add(1)
		go func() {
			defer handler.Done()
			mu := locks.Acquire(7)
			mu.Lock()
			defer mu.Unlock()
			sess, err := sessions.Get(context.Background(), 7)
			require.NoError(t, err)
			sess.AutoVote = false
			sess.Paused = true
			require.NoError(t, sessions.Put(context.Background(), 7, sess))
		}()
	}

	s := New(sessions, locks, sender, catalog.Default(), Config{})
	s.now = func() time.Time { return testNow }

	require.NoError(t, s.Sweep(context.Background()))
	handler.Wait()

	sess := sessions.m[7]
	assert.True(t, sess.Paused, "a stop landing during the sweep must stick")
	assert.False(t, sess.AutoVote)
	assert.Equal(t, testNow, sess.LastReminderAt)
}

func TestSweep_SkipsNeverSeenUser(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{7: {}}}
	sender := &mockSender{}
	s := newScheduler(sessions, sender, Config{})

	require.NoError(t, s.Sweep(context.Background()))

	assert.Empty(t, sender.sent)
}

func TestRun_StopsOnCancel(t *testing.T) {
	sessions := &fakeSessions{m: map[int64]model.Session{}}
	s := newScheduler(sessions, &mockSender{}, Config{Period: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
