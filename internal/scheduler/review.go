package scheduler

import (
	"fmt"
	"time"
)

// Outcome is a memory-model engine's projection of one card after one rating.
type Outcome struct {
	State         State
	Due           time.Time
	Stability     float64
	Difficulty    float64
	Lapses        int
	Reps          int
	ElapsedDays   int
	ScheduledDays int
}

// MemoryModel computes per-rating scheduling outcomes for a card.
//
// Repeat must cover all four ratings, must never produce a New state, and
// must be deterministic for a fixed (card, now) apart from any internal
// interval fuzz. The engine's stability/difficulty math is opaque to this
// package.
type MemoryModel interface {
	Repeat(card Card, now time.Time) map[Rating]Outcome
}

// ReviewLogEntry is the immutable record of one review. ElapsedDays and
// ScheduledDays are recomputed through the day-boundary calculator from the
// resulting due/last-review instants rather than taken from the engine's
// raw millisecond deltas, which keeps interval statistics stable across
// day-start and DST boundaries.
type ReviewLogEntry struct {
	CardID        int64
	Rating        Rating
	State         State
	Due           time.Time
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	ReviewedAt    time.Time
	TimeSpent     time.Duration
}

// Session applies reviews under one deck configuration and one memory model.
type Session struct {
	engine MemoryModel
	conf   *DeckConfig
}

// NewSession creates a review session. conf must come from configuration
// loading, which has already rejected an empty learning-step table.
func NewSession(engine MemoryModel, conf *DeckConfig) *Session {
	return &Session{engine: engine, conf: conf}
}

// Review produces the card's next state and the log entry for one review.
// The input card is not mutated. Review is total over well-formed input;
// it returns an error only for an invalid rating or a corrupted upstream
// state (see ErrEngineNewState, ErrMissingLastReview).
func (s *Session) Review(card Card, rating Rating, now time.Time) (Card, ReviewLogEntry, error) {
	if !rating.IsValid() {
		return Card{}, ReviewLogEntry{}, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	c := card.clone()
	switch c.State {
	case New, Learning:
		return s.reviewLearning(c, rating, now)
	case Review, Relearning:
		return s.reviewGraduated(c, rating, now)
	default:
		return Card{}, ReviewLogEntry{}, fmt.Errorf("%w: %d", ErrInvalidState, int(c.State))
	}
}

// reviewGraduated delegates Review/Relearning cards wholly to the engine.
func (s *Session) reviewGraduated(c Card, rating Rating, now time.Time) (Card, ReviewLogEntry, error) {
	if c.LastReview == nil {
		return Card{}, ReviewLogEntry{}, fmt.Errorf("%w: card %d in state %s", ErrMissingLastReview, c.ID, c.State)
	}
	prevLast := *c.LastReview

	out := s.engine.Repeat(c, now)[rating]
	if out.State == New {
		return Card{}, ReviewLogEntry{}, fmt.Errorf("%w: card %d rated %s", ErrEngineNewState, c.ID, rating)
	}

	c.applyOutcome(out)
	c.LastReview = &now

	return c, s.logEntry(c, rating, &prevLast, now), nil
}

// reviewLearning runs the learning-step path for New and Learning cards.
// The configured step table controls timing while the engine's projections
// keep stability and difficulty evolving underneath it.
func (s *Session) reviewLearning(c Card, rating Rating, now time.Time) (Card, ReviewLogEntry, error) {
	// Only New cards may lack a previous review; a Learning card without
	// one is corrupted state, not something to coerce.
	if c.State == Learning && c.LastReview == nil {
		return Card{}, ReviewLogEntry{}, fmt.Errorf("%w: card %d in state %s", ErrMissingLastReview, c.ID, c.State)
	}

	prevLast := c.LastReview
	if c.State == New {
		c.State = Learning
		c.Due = now
	}

	steps := s.conf.LearningSteps
	stepIdx := s.lastStepIndex(c, now)
	outcomes := s.engine.Repeat(c, now)

	switch rating {
	case Again:
		out := outcomes[Again]
		c.Due = now.Add(steps[0])
		c.Stability = out.Stability
		c.Difficulty = out.Difficulty
		c.Lapses = out.Lapses
		s.holdInLearning(&c, prevLast, now)

	case Hard:
		out := outcomes[Hard]
		c.Due = now.Add(s.hardDelay(stepIdx))
		c.Stability = out.Stability
		c.Difficulty = out.Difficulty
		s.holdInLearning(&c, prevLast, now)

	case Good:
		if next := stepIdx + 1; next < len(steps) {
			out := outcomes[Good]
			c.Due = now.Add(steps[next])
			c.Stability = out.Stability
			c.Difficulty = out.Difficulty
			s.holdInLearning(&c, prevLast, now)
			break
		}
		// Final step cleared: graduate with the engine's Good branch verbatim.
		if err := s.graduate(&c, outcomes[Good], now); err != nil {
			return Card{}, ReviewLogEntry{}, err
		}

	case Easy:
		// Easy always bypasses the step table.
		if err := s.graduate(&c, outcomes[Easy], now); err != nil {
			return Card{}, ReviewLogEntry{}, err
		}
	}

	return c, s.logEntry(c, rating, prevLast, now), nil
}

// lastStepIndex finds the most recent learning step the card has already
// cleared: the index of the last configured step whose duration is no
// longer than the time since the previous review. A brand-new card measures
// against the first step's own duration, which places it at index 0.
func (s *Session) lastStepIndex(c Card, now time.Time) int {
	sinceLast := s.conf.LearningSteps[0]
	if c.LastReview != nil {
		sinceLast = now.Sub(*c.LastReview)
	}
	idx := 0
	for i, step := range s.conf.LearningSteps {
		if step <= sinceLast {
			idx = i
		}
	}
	return idx
}

// hardDelay computes the Hard interval relative to the step the card sits on.
func (s *Session) hardDelay(stepIdx int) time.Duration {
	steps := s.conf.LearningSteps
	if next := stepIdx + 1; next < len(steps) {
		// Midpoint between the Again due and the Good due.
		return (steps[0] + steps[next]) / 2
	}
	if len(steps) == 1 {
		// Stay later than Again on a single-step table.
		return time.Duration(1.5 * float64(steps[0]))
	}
	if s.conf.HardStepPolicy == HardRepeatFirst {
		return steps[0]
	}
	return steps[len(steps)-1]
}

// holdInLearning finishes a non-graduating branch: the card stays in
// Learning with an intra-day interval, counting the rep itself.
func (s *Session) holdInLearning(c *Card, prevLast *time.Time, now time.Time) {
	c.ScheduledDays = 0
	c.ElapsedDays = 0
	if prevLast != nil {
		c.ElapsedDays = DaysBetween(*prevLast, now, s.conf.DayStartOffset)
	}
	c.Reps++
	c.LastReview = &now
}

// graduate applies an engine outcome verbatim, moving the card out of the
// learning path. The engine's own rep and lapse counters win here.
func (s *Session) graduate(c *Card, out Outcome, now time.Time) error {
	if out.State == New {
		return fmt.Errorf("%w: card %d graduating", ErrEngineNewState, c.ID)
	}
	c.applyOutcome(out)
	c.LastReview = &now
	return nil
}

// logEntry builds the review record for the card's post-review state.
func (s *Session) logEntry(c Card, rating Rating, prevLast *time.Time, now time.Time) ReviewLogEntry {
	offset := s.conf.DayStartOffset
	elapsed := 0
	if prevLast != nil {
		elapsed = DaysBetween(*prevLast, now, offset)
	}
	scheduled := DaysBetween(now, c.Due, offset)
	if scheduled < 0 {
		scheduled = 0
	}
	return ReviewLogEntry{
		CardID:        c.ID,
		Rating:        rating,
		State:         c.State,
		Due:           c.Due,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   elapsed,
		ScheduledDays: scheduled,
		ReviewedAt:    now,
	}
}
