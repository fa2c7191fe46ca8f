package window

import "time"

// Clock hands out the current time. Production wires time.Now, tests
// substitute a controllable source to drive window rollover without sleeping.
type Clock func() time.Time

// MinuteBounds returns the half-open minute interval containing ts:
// start is ts with seconds stripped, end is start plus one minute.
func MinuteBounds(ts time.Time) (start, end time.Time) {
	start = ts.Truncate(time.Minute)
	return start, start.Add(time.Minute)
}

// WeekBounds returns the half-open week interval containing ts.
// The week starts at local midnight of the Monday on or before ts
// and runs exactly 7*24 hours.
func WeekBounds(ts time.Time) (start, end time.Time) {
	y, m, d := ts.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, ts.Location())

	daysSinceMonday := (int(midnight.Weekday()) + 6) % 7
	start = midnight.AddDate(0, 0, -daysSinceMonday)

	return start, start.Add(7 * 24 * time.Hour)
}
