package scheduler

import "time"

// Limit is one resolved daily cap with the full cascade it was drawn from.
type Limit struct {
	DeckToday    *int // Deck's custom cap for the current logical day, if set.
	DeckDefault  *int // Deck's permanent cap, if set.
	ConfStandard int  // Config-level per-day standard; always present.
	Effective    int
}

// Limits holds the resolved new-card and review-card caps for one deck.
type Limits struct {
	New Limit
	Rev Limit
}

// LimitsFor resolves the effective daily caps for deck on the logical day
// containing now. The cascade is: deck custom-today cap, honored only while
// deck.Today still refers to the same logical day; then the deck's
// permanent cap; then the config standard. A nil deck resolves against the
// config alone, so resolution never fails.
func LimitsFor(deck *Deck, conf *DeckConfig, now time.Time) Limits {
	limits := Limits{
		New: Limit{ConfStandard: conf.NewPerDay, Effective: conf.NewPerDay},
		Rev: Limit{ConfStandard: conf.ReviewPerDay, Effective: conf.ReviewPerDay},
	}
	if deck == nil {
		return limits
	}

	isToday := SameDay(deck.Today, now, conf.DayStartOffset)

	limits.New.DeckToday = deck.NewLimitToday
	limits.New.DeckDefault = deck.NewLimit
	limits.New.Effective = limits.New.resolve(isToday)

	limits.Rev.DeckToday = deck.RevLimitToday
	limits.Rev.DeckDefault = deck.RevLimit
	limits.Rev.Effective = limits.Rev.resolve(isToday)

	return limits
}

// resolve walks the cascade. A stale custom-today cap is skipped outright.
func (l Limit) resolve(isToday bool) int {
	if isToday && l.DeckToday != nil {
		return *l.DeckToday
	}
	if l.DeckDefault != nil {
		return *l.DeckDefault
	}
	return l.ConfStandard
}
