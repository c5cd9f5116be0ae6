/*
Package clock provides an injectable wall-clock, generalizing the
teacher's generic.TimePoint/Today() into an explicit dependency so
posting, reversal, and the aging report can be tested against fixed
dates instead of time.Now().
*/
package clock

import "time"

// Clock returns the current time. Production code uses SystemClock;
// tests inject a Fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock that always returns the same instant. Useful for
// deterministic tests of aging buckets, FY boundary checks, and
// idempotent-replay assertions.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

// Day truncates a time to midnight UTC, the granularity spec.md uses for
// posting_date/due_date comparisons (FY ranges, aging buckets).
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from `from` to `to`,
// clamped to zero when negative (spec §4.11: "negative clamped to 0").
func DaysBetween(from, to time.Time) int {
	d := int(Day(to).Sub(Day(from)).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
