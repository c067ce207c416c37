package scheduler

import (
	"strings"
	"time"
)

// PathSeparator joins the segments of a deck name into a tree path.
const PathSeparator = "::"

// NewCardOrder selects how new cards are drawn once the review queue allows one.
type NewCardOrder int

const (
	OrderSequential NewCardOrder = iota // Lowest due (insertion order) first.
	OrderRandom                         // Uniformly random among new cards.
)

// HardStepPolicy decides which learning step a Hard rating repeats when the
// card has already cleared the final step.
type HardStepPolicy int

const (
	HardRepeatLast  HardStepPolicy = iota // Repeat the final step.
	HardRepeatFirst                       // Fall back to the first step.
)

// Deck is one node in the `::`-delimited deck hierarchy, together with its
// daily-limit state. Today marks the logical day the per-day counters and
// the custom today-limits belong to; once a new logical day is observed the
// caller resets the counters and clears the today-limits before studying.
type Deck struct {
	ID          int64
	Name        string
	ConfigName  string
	Today       time.Time
	NewToday    int
	ReviewToday int

	// Custom caps for the current logical day only. Stale once Today rolls over.
	NewLimitToday *int
	RevLimitToday *int

	// Permanent per-deck caps overriding the config-level standard.
	NewLimit *int
	RevLimit *int
}

// Ancestors returns every proper prefix path of the deck's name, nearest
// first. "Math::Algebra::Linear" yields ["Math::Algebra", "Math"].
func (d Deck) Ancestors() []string {
	segs := strings.Split(d.Name, PathSeparator)
	out := make([]string, 0, len(segs)-1)
	for i := len(segs) - 1; i > 0; i-- {
		out = append(out, strings.Join(segs[:i], PathSeparator))
	}
	return out
}

// DeckConfig carries the scheduling behavior shared by decks referencing it.
// LearningSteps always holds at least one entry; configuration loading
// rejects an empty table before a config can reach this package.
type DeckConfig struct {
	Name             string
	LearningSteps    []time.Duration
	NewPerDay        int
	ReviewPerDay     int
	DayStartOffset   time.Duration
	ReviewDelay      time.Duration
	NewCardOrder     NewCardOrder
	HardStepPolicy   HardStepPolicy
	DesiredRetention float64
	MaximumInterval  int
	DisableFuzzing   bool
}
