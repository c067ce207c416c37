package scheduler

import (
	"math"
	"time"
)

// StartOfDay returns the instant at which the logical day containing t
// begins. offset shifts the day boundary past local midnight, so with a
// four-hour offset a review at 02:00 still belongs to the previous day.
//
// This is the only implementation of day arithmetic in the module; every
// component that compares "today" goes through here.
func StartOfDay(t time.Time, offset time.Duration) time.Time {
	year, month, day := t.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, t.Location()).Add(offset)
	if start.After(t) {
		start = start.Add(-24 * time.Hour)
	}
	return start
}

// DaysBetween returns the number of logical day boundaries crossed going
// from a to b. Negative when b precedes a.
func DaysBetween(a, b time.Time, offset time.Duration) int {
	diff := StartOfDay(b, offset).Sub(StartOfDay(a, offset))
	return int(math.Round(diff.Hours() / 24))
}

// SameDay reports whether a and b fall inside the same logical day.
func SameDay(a, b time.Time, offset time.Duration) bool {
	return StartOfDay(a, offset).Equal(StartOfDay(b, offset))
}
