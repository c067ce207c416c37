package scheduler

import (
	"fmt"
	"time"
)

// Bucket is the due classification of a card at a point in time. It is
// derived on every query and never stored.
type Bucket int

const (
	BucketNone     Bucket = iota // Not due, buried, or suspended.
	BucketNew                    // Awaiting first study.
	BucketLearning               // Inside an intra-day learning step.
	BucketReview                 // Due on or before the current logical day.
)

var bucketNames = [...]string{BucketNone: "none", BucketNew: "new", BucketLearning: "learning", BucketReview: "review"}

// String returns the name of the bucket.
func (b Bucket) String() string {
	if b >= BucketNone && b <= BucketReview {
		return bucketNames[b]
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// Classify assigns the card to its due bucket as of now. A suspended card
// is never due; a buried card is hidden only until the next logical day
// rolls over its last-edited instant.
func Classify(c Card, now time.Time, offset time.Duration) Bucket {
	switch c.Queue {
	case QueueSuspended:
		return BucketNone
	case QueueBuried:
		if SameDay(c.LastEdited, now, offset) {
			return BucketNone
		}
	}

	switch {
	case c.State == New:
		return BucketNew
	case (c.State == Learning || c.State == Relearning) && c.ScheduledDays == 0:
		return BucketLearning
	case !StartOfDay(c.Due, offset).After(StartOfDay(now, offset)):
		return BucketReview
	default:
		return BucketNone
	}
}
