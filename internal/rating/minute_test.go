package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderboard/internal/domain"
)

func newTestMinute(t *testing.T) *MinuteRating {
	t.Helper()
	start := time.Date(2024, 1, 8, 12, 0, 0, 0, time.Local)
	return NewMinuteRating(start, start.Add(time.Minute))
}

func collect(m *MinuteRating) map[domain.UserID]domain.Amount {
	out := make(map[domain.UserID]domain.Amount)
	m.Each(func(id domain.UserID, amount domain.Amount) {
		out[id] = amount
	})
	return out
}

func TestMinuteRating_RecordAccumulates(t *testing.T) {
	t.Parallel()

	m := newTestMinute(t)
	ts := m.StartTS().Add(10 * time.Second)

	m.Record(ts, 1, 10)
	m.Record(ts.Add(time.Second), 1, 20)
	m.Record(ts, 2, 5.2)

	require.Equal(t, 2, m.Len())
	got := collect(m)
	assert.Equal(t, domain.Amount(30), got[1])
	assert.Equal(t, domain.Amount(5.2), got[2])
}

func TestMinuteRating_RecordOutsideIntervalDropped(t *testing.T) {
	t.Parallel()

	m := newTestMinute(t)

	m.Record(m.StartTS().Add(-time.Second), 1, 10) // before start
	m.Record(m.FinishTS(), 1, 10)                  // finish itself is excluded
	m.Record(m.FinishTS().Add(time.Hour), 1, 10)

	assert.Zero(t, m.Len())
}

func TestMinuteRating_BoundaryTimestamps(t *testing.T) {
	t.Parallel()

	m := newTestMinute(t)

	m.Record(m.StartTS(), 1, 1) // start itself is included
	m.Record(m.FinishTS().Add(-time.Nanosecond), 1, 2)

	got := collect(m)
	assert.Equal(t, domain.Amount(3), got[1])
}

func TestMinuteRating_EachIsRepeatable(t *testing.T) {
	t.Parallel()

	m := newTestMinute(t)
	m.Record(m.StartTS(), 1, 10)
	m.Record(m.StartTS(), 2, 20)

	assert.Equal(t, collect(m), collect(m))
}
