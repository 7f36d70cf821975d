package engage

import (
	"time"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
)

// Tracker turns raw interaction timestamps into a per-user rolling
// estimate of how often the user comes back. A new engagement session
// starts when the gap since the last interaction exceeds GapThreshold;
// the interval sample is the distance between the starts of two
// consecutive sessions.
type Tracker struct {
	GapThreshold time.Duration
}

// Observe records an inbound interaction at now and updates the
// session's interaction timestamps in place. It returns the produced
// interval sample, if any. The rolling average is exponentially
// smoothed with factor 0.5 and seeded with the first observed sample.
func (t Tracker) Observe(s *model.Session, now time.Time) (sample time.Duration, ok bool) {
	if s.LastInteractionAt.IsZero() {
		// First-ever interaction: a session starts, no interval yet.
		s.LastSessionStartAt = now
		s.LastInteractionAt = now
		return 0, false
	}

	gap := now.Sub(s.LastInteractionAt)
	if gap <= t.GapThreshold {
		// Same session; the session start stays put.
		s.LastInteractionAt = now
		return 0, false
	}

	sample = now.Sub(s.LastSessionStartAt)
	s.LastSessionStartAt = now
	s.LastInteractionAt = now

	if s.AvgSessionInterval == 0 {
		s.AvgSessionInterval = sample
	} else {
		s.AvgSessionInterval = (s.AvgSessionInterval + sample) / 2
	}

	return sample, true
}
