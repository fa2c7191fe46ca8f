package rating

import (
	"time"

	"traderboard/internal/domain"
)

// MinuteRating accumulates per-user winnings for one fixed minute interval.
// It is written by the service dispatch loop while the minute is open and
// handed to the week rating once the minute ends; the hand-off is an
// ownership transfer, nothing enforces read-only after it.
type MinuteRating struct {
	start  time.Time
	finish time.Time

	wonAmount map[domain.UserID]domain.Amount
}

func NewMinuteRating(start, finish time.Time) *MinuteRating {
	return &MinuteRating{
		start:     start,
		finish:    finish,
		wonAmount: make(map[domain.UserID]domain.Amount),
	}
}

// Record adds amount to the user's running total for this minute.
// Deals timestamped outside [start, finish) are dropped here; routing them
// to the right open minute is the orchestrator's job.
func (m *MinuteRating) Record(ts time.Time, id domain.UserID, amount domain.Amount) {
	if ts.Before(m.start) || !ts.Before(m.finish) {
		return
	}
	m.wonAmount[id] += amount
}

func (m *MinuteRating) StartTS() time.Time { return m.start }

func (m *MinuteRating) FinishTS() time.Time { return m.finish }

// Each visits every (user, amount) pair. Order is unspecified and callers
// must not depend on it; visiting twice without intervening writes yields
// the same multiset.
func (m *MinuteRating) Each(fn func(domain.UserID, domain.Amount)) {
	for id, amount := range m.wonAmount {
		fn(id, amount)
	}
}

func (m *MinuteRating) Len() int { return len(m.wonAmount) }
