// Package fsrs implements the FSRS memory model: stability and difficulty
// updates, the retrievability power curve, and retention-targeted review
// intervals. It satisfies scheduler.MemoryModel; everything above it treats
// the math in here as opaque.
package fsrs

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/conorfennell/knoldeck/internal/scheduler"
)

// ErrInvalidWeights reports a parameter outside its trainable bounds.
var ErrInvalidWeights = errors.New("fsrs: weights out of bounds")

// Config configures an Engine. Zero values take defaults.
type Config struct {
	Weights          [21]float64   // zero → DefaultWeights
	DesiredRetention float64       // zero → 0.9
	MaximumInterval  int           // days; zero → 36500
	RelearnStep      time.Duration // relapse interval; zero → 10m
	DisableFuzzing   bool
}

// Engine computes per-rating outcomes from the FSRS parameters. The decay
// and factor constants are precomputed once from w[20].
type Engine struct {
	w                [21]float64
	decay            float64
	factor           float64
	desiredRetention float64
	maximumInterval  int
	relearnStep      time.Duration
	disableFuzzing   bool
	rng              *rand.Rand
}

// New creates an Engine, validating the weights.
func New(cfg Config) (*Engine, error) {
	w := cfg.Weights
	if w == ([21]float64{}) {
		w = DefaultWeights
	}
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}

	dr := cfg.DesiredRetention
	if dr == 0 {
		dr = 0.9
	}
	if dr < 0 || dr > 1 {
		return nil, fmt.Errorf("fsrs: desired retention %f out of range (0, 1]", dr)
	}

	maxIvl := cfg.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 0 {
		return nil, fmt.Errorf("fsrs: maximum interval %d must be positive", maxIvl)
	}

	relearn := cfg.RelearnStep
	if relearn == 0 {
		relearn = 10 * time.Minute
	}

	decay := -w[20]
	return &Engine{
		w:                w,
		decay:            decay,
		factor:           math.Pow(0.9, 1.0/decay) - 1.0,
		desiredRetention: dr,
		maximumInterval:  maxIvl,
		relearnStep:      relearn,
		disableFuzzing:   cfg.DisableFuzzing,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Repeat projects the card's next scheduling state for all four ratings.
// The projection never produces a New state.
func (e *Engine) Repeat(card scheduler.Card, now time.Time) map[scheduler.Rating]scheduler.Outcome {
	out := make(map[scheduler.Rating]scheduler.Outcome, 4)
	for _, r := range scheduler.Ratings {
		out[r] = e.outcome(card, r, now)
	}
	return out
}

// Retrievability returns the card's probability of recall at now. Cards
// that were never reviewed have no memory state and return 0.
func (e *Engine) Retrievability(card scheduler.Card, now time.Time) float64 {
	if card.LastReview == nil || card.Stability == 0 {
		return 0
	}
	elapsed := now.Sub(*card.LastReview).Hours() / 24.0
	return e.retrievability(elapsed, card.Stability)
}

func (e *Engine) outcome(c scheduler.Card, r scheduler.Rating, now time.Time) scheduler.Outcome {
	stability, difficulty, elapsed := e.nextMemory(c, r, now)

	out := scheduler.Outcome{
		Stability:   stability,
		Difficulty:  difficulty,
		Lapses:      c.Lapses,
		Reps:        c.Reps + 1,
		ElapsedDays: int(elapsed),
	}

	switch c.State {
	case scheduler.Review, scheduler.Relearning:
		if r == scheduler.Again {
			out.State = scheduler.Relearning
			out.Due = now.Add(e.relearnStep)
			if c.State == scheduler.Review {
				out.Lapses = c.Lapses + 1
			}
			return out
		}
		if c.State == scheduler.Relearning && r == scheduler.Hard {
			out.State = scheduler.Relearning
			out.Due = now.Add(time.Duration(1.5 * float64(e.relearnStep)))
			return out
		}
		e.schedule(&out, now)
		return out

	default: // New, Learning
		switch r {
		case scheduler.Again:
			out.State = scheduler.Learning
			out.Due = now.Add(time.Minute)
		case scheduler.Hard:
			out.State = scheduler.Learning
			out.Due = now.Add(5 * time.Minute)
		default: // Good and Easy graduate.
			e.schedule(&out, now)
		}
		return out
	}
}

// nextMemory computes the post-review stability and difficulty.
func (e *Engine) nextMemory(c scheduler.Card, r scheduler.Rating, now time.Time) (stability, difficulty, elapsed float64) {
	if c.LastReview == nil || c.Stability == 0 {
		return e.initStability(r), e.initDifficulty(r, true), 0
	}

	elapsed = now.Sub(*c.LastReview).Hours() / 24.0
	if elapsed < 1 {
		stability = e.shortTermStability(c.Stability, r)
	} else {
		ret := e.retrievability(elapsed, c.Stability)
		stability = e.nextStability(c.Difficulty, c.Stability, ret, r)
	}
	return stability, e.nextDifficulty(c.Difficulty, r), elapsed
}

// schedule fills in a Review-state outcome at the retention-targeted interval.
func (e *Engine) schedule(out *scheduler.Outcome, now time.Time) {
	days := e.interval(out.Stability)
	if !e.disableFuzzing && days > 0 {
		days = applyFuzz(days, e.maximumInterval, e.rng)
	}
	out.State = scheduler.Review
	out.Due = now.Add(time.Duration(days) * 24 * time.Hour)
	out.ScheduledDays = days
}

// retrievability computes R(t, S) = (1 + factor * t / S) ^ decay.
func (e *Engine) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+e.factor*elapsedDays/stability, e.decay)
}

// interval computes the next review interval in days, clamped to
// [1, maximumInterval].
func (e *Engine) interval(stability float64) int {
	ivl := stability / e.factor * (math.Pow(e.desiredRetention, 1.0/e.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > e.maximumInterval {
		days = e.maximumInterval
	}
	return days
}

// initStability returns S₀(G) for the first review.
func (e *Engine) initStability(r scheduler.Rating) float64 {
	return clampStability(e.w[r-1])
}

// initDifficulty returns D₀(G) = w[4] - e^(w[5] * (G - 1)) + 1.
func (e *Engine) initDifficulty(r scheduler.Rating, clamp bool) float64 {
	d := e.w[4] - math.Exp(e.w[5]*float64(r-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// shortTermStability handles same-day reviews.
func (e *Engine) shortTermStability(stability float64, r scheduler.Rating) float64 {
	inc := math.Exp(e.w[17]*(float64(r)-3+e.w[18])) * math.Pow(stability, -e.w[19])
	if r == scheduler.Good || r == scheduler.Easy {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

// nextDifficulty applies linear damping and mean reversion toward D₀(Easy).
func (e *Engine) nextDifficulty(difficulty float64, r scheduler.Rating) float64 {
	delta := -e.w[6] * (float64(r) - 3)
	damped := difficulty + (10-difficulty)*delta/9
	reverted := e.w[7]*e.initDifficulty(scheduler.Easy, false) + (1-e.w[7])*damped
	return clampDifficulty(reverted)
}

// nextStability dispatches on recall success.
func (e *Engine) nextStability(d, s, retr float64, r scheduler.Rating) float64 {
	if r == scheduler.Again {
		return e.forgetStability(d, s, retr)
	}
	return e.recallStability(d, s, retr, r)
}

// recallStability computes stability after Hard/Good/Easy.
func (e *Engine) recallStability(d, s, retr float64, r scheduler.Rating) float64 {
	hardPenalty := 1.0
	if r == scheduler.Hard {
		hardPenalty = e.w[15]
	}
	easyBonus := 1.0
	if r == scheduler.Easy {
		easyBonus = e.w[16]
	}
	return s * (1 + math.Exp(e.w[8])*
		(11-d)*
		math.Pow(s, -e.w[9])*
		(math.Exp((1-retr)*e.w[10])-1)*
		hardPenalty*easyBonus)
}

// forgetStability computes stability after Again.
func (e *Engine) forgetStability(d, s, retr float64) float64 {
	long := e.w[11] *
		math.Pow(d, -e.w[12]) *
		(math.Pow(s+1, e.w[13]) - 1) *
		math.Exp((1-retr)*e.w[14])
	short := s / math.Exp(e.w[17]*e.w[18])
	return math.Min(long, short)
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}
