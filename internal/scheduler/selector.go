package scheduler

import (
	"math/rand"
	"time"
)

// DeckSet is the flattened view of one deck subtree prepared for a study
// session: the deck being studied (nil for the global view), its config,
// and every card in the subtree.
type DeckSet struct {
	Deck  *Deck
	Conf  *DeckConfig
	Cards []Card
}

// Selector picks the next card to present. It owns the randomness used for
// the random new-card order so tests can inject a fixed seed.
type Selector struct {
	rng *rand.Rand
}

// NewSelector creates a selector with time-seeded randomness.
func NewSelector() *Selector {
	return &Selector{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededSelector creates a selector with deterministic randomness.
func NewSeededSelector(seed int64) *Selector {
	return &Selector{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the card to present now, or one of two exhaustion sentinels:
// ErrNewLimitReached when only capped-out new cards remain for today, and
// ErrNothingDue when the subtree holds nothing to study at all.
//
// Review and learning cards take priority: the soonest-due card already
// inside the early-review delay window wins. A new card is dealt instead
// when no review qualifies, or when the best review is still ahead of now,
// provided today's new-card cap has room.
func (s *Selector) Next(set DeckSet, now time.Time) (Card, error) {
	offset := set.Conf.DayStartOffset
	horizon := now.Add(set.Conf.ReviewDelay)

	var best *Card
	var fresh []Card
	for i := range set.Cards {
		c := &set.Cards[i]
		switch Classify(*c, now, offset) {
		case BucketNew:
			fresh = append(fresh, *c)
		case BucketLearning, BucketReview:
			if c.Due.After(horizon) {
				continue
			}
			if best == nil || c.Due.Before(best.Due) {
				best = c
			}
		}
	}

	newRemaining := s.newRemaining(set, now)
	wantNew := best == nil || (len(fresh) > 0 && best.Due.After(now))
	if wantNew && len(fresh) > 0 && newRemaining > 0 {
		return s.pickNew(fresh, set.Conf.NewCardOrder), nil
	}

	if best != nil {
		return *best, nil
	}
	if len(fresh) > 0 {
		return Card{}, ErrNewLimitReached
	}
	return Card{}, ErrNothingDue
}

// newRemaining computes how many new cards today's cap still allows.
func (s *Selector) newRemaining(set DeckSet, now time.Time) int {
	limits := LimitsFor(set.Deck, set.Conf, now)
	remaining := limits.New.Effective
	if set.Deck != nil && SameDay(set.Deck.Today, now, set.Conf.DayStartOffset) {
		remaining -= set.Deck.NewToday
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// pickNew applies the configured new-card ordering policy.
func (s *Selector) pickNew(fresh []Card, order NewCardOrder) Card {
	if order == OrderRandom {
		return fresh[s.rng.Intn(len(fresh))]
	}
	pick := fresh[0]
	for _, c := range fresh[1:] {
		if c.Due.Before(pick.Due) {
			pick = c
		}
	}
	return pick
}
