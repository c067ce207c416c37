package fsrs

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/conorfennell/knoldeck/internal/scheduler"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func testEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.DisableFuzzing = true
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func reviewCard(stability, difficulty float64, elapsed time.Duration) scheduler.Card {
	last := t0.Add(-elapsed)
	return scheduler.Card{
		ID:         1,
		State:      scheduler.Review,
		Due:        t0,
		LastReview: &last,
		Reps:       3,
		Stability:  stability,
		Difficulty: difficulty,
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err != nil {
		t.Errorf("zero config should take defaults, got %v", err)
	}

	bad := DefaultWeights
	bad[4] = 50 // difficulty base bound is 10
	if _, err := New(Config{Weights: bad}); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("out-of-bounds weights: err = %v, want ErrInvalidWeights", err)
	}

	if _, err := New(Config{DesiredRetention: 1.5}); err == nil {
		t.Error("desired retention above 1 accepted")
	}
	if _, err := New(Config{MaximumInterval: -7}); err == nil {
		t.Error("negative maximum interval accepted")
	}
}

func TestValidateWeights(t *testing.T) {
	if err := ValidateWeights(DefaultWeights); err != nil {
		t.Errorf("default weights rejected: %v", err)
	}
	w := DefaultWeights
	w[20] = 0.99 // decay bound is 0.8
	if err := ValidateWeights(w); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("err = %v, want ErrInvalidWeights", err)
	}
}

func TestRepeatCoversAllRatings(t *testing.T) {
	e := testEngine(t, Config{})
	relearning := reviewCard(2, 7, time.Hour)
	relearning.State = scheduler.Relearning
	cards := map[string]scheduler.Card{
		"new":        {ID: 1, State: scheduler.New, Due: t0},
		"review":     reviewCard(10, 5, 5*24*time.Hour),
		"relearning": relearning,
	}

	for name, card := range cards {
		t.Run(name, func(t *testing.T) {
			out := e.Repeat(card, t0)
			if len(out) != 4 {
				t.Fatalf("got %d outcomes, want 4", len(out))
			}
			for _, r := range scheduler.Ratings {
				o, ok := out[r]
				if !ok {
					t.Fatalf("missing outcome for %v", r)
				}
				if o.State == scheduler.New {
					t.Errorf("%v projected a New state", r)
				}
				if o.Reps != card.Reps+1 {
					t.Errorf("%v: Reps = %d, want %d", r, o.Reps, card.Reps+1)
				}
				if !o.Due.After(t0) {
					t.Errorf("%v: due %v not after now", r, o.Due)
				}
			}
		})
	}
}

func TestRepeatFirstReview(t *testing.T) {
	e := testEngine(t, Config{})
	card := scheduler.Card{ID: 1, State: scheduler.New, Due: t0}
	out := e.Repeat(card, t0)

	if got := out[scheduler.Again]; got.State != scheduler.Learning || !got.Due.Equal(t0.Add(time.Minute)) {
		t.Errorf("Again = (%v, %v), want Learning due +1m", got.State, got.Due)
	}
	if got := out[scheduler.Hard]; got.State != scheduler.Learning || !got.Due.Equal(t0.Add(5*time.Minute)) {
		t.Errorf("Hard = (%v, %v), want Learning due +5m", got.State, got.Due)
	}
	for _, r := range []scheduler.Rating{scheduler.Good, scheduler.Easy} {
		if got := out[r]; got.State != scheduler.Review || got.ScheduledDays < 1 {
			t.Errorf("%v = (%v, %d days), want Review with at least one day", r, got.State, got.ScheduledDays)
		}
	}

	// First-review stability is the per-rating initial parameter.
	for _, r := range scheduler.Ratings {
		if got := out[r].Stability; got != DefaultWeights[r-1] {
			t.Errorf("%v: Stability = %f, want w[%d] = %f", r, got, r-1, DefaultWeights[r-1])
		}
	}
	// Initial difficulty falls as the rating improves.
	for i := 1; i < len(scheduler.Ratings); i++ {
		lo, hi := scheduler.Ratings[i], scheduler.Ratings[i-1]
		if out[lo].Difficulty >= out[hi].Difficulty {
			t.Errorf("difficulty(%v) = %f not below difficulty(%v) = %f",
				lo, out[lo].Difficulty, hi, out[hi].Difficulty)
		}
	}
	if out[scheduler.Easy].ScheduledDays < out[scheduler.Good].ScheduledDays {
		t.Errorf("Easy interval %d shorter than Good interval %d",
			out[scheduler.Easy].ScheduledDays, out[scheduler.Good].ScheduledDays)
	}
}

func TestRepeatReviewLapse(t *testing.T) {
	e := testEngine(t, Config{})

	card := reviewCard(10, 5, 5*24*time.Hour)
	got := e.Repeat(card, t0)[scheduler.Again]
	if got.State != scheduler.Relearning {
		t.Errorf("State = %v, want Relearning", got.State)
	}
	if !got.Due.Equal(t0.Add(10 * time.Minute)) {
		t.Errorf("Due = %v, want now+10m relearn step", got.Due)
	}
	if got.Lapses != card.Lapses+1 {
		t.Errorf("Lapses = %d, want %d", got.Lapses, card.Lapses+1)
	}
	if got.Stability >= card.Stability {
		t.Errorf("forgetting kept stability at %f (was %f)", got.Stability, card.Stability)
	}

	// Again while already relearning does not lapse twice.
	relearning := card
	relearning.State = scheduler.Relearning
	if got := e.Repeat(relearning, t0)[scheduler.Again]; got.Lapses != relearning.Lapses {
		t.Errorf("relearning Again: Lapses = %d, want unchanged %d", got.Lapses, relearning.Lapses)
	}

	// Hard while relearning repeats at 1.5x the relearn step.
	if got := e.Repeat(relearning, t0)[scheduler.Hard]; got.State != scheduler.Relearning || !got.Due.Equal(t0.Add(15*time.Minute)) {
		t.Errorf("relearning Hard = (%v, %v), want Relearning due +15m", got.State, got.Due)
	}
}

func TestRepeatReviewRecall(t *testing.T) {
	e := testEngine(t, Config{})
	card := reviewCard(10, 5, 10*24*time.Hour)
	out := e.Repeat(card, t0)

	if got := out[scheduler.Good]; got.Stability <= card.Stability {
		t.Errorf("Good recall: Stability = %f, want growth beyond %f", got.Stability, card.Stability)
	}
	if out[scheduler.Hard].Stability >= out[scheduler.Good].Stability {
		t.Errorf("Hard stability %f not below Good %f",
			out[scheduler.Hard].Stability, out[scheduler.Good].Stability)
	}
	if out[scheduler.Easy].Stability <= out[scheduler.Good].Stability {
		t.Errorf("Easy stability %f not above Good %f",
			out[scheduler.Easy].Stability, out[scheduler.Good].Stability)
	}
	for _, r := range []scheduler.Rating{scheduler.Hard, scheduler.Good, scheduler.Easy} {
		if o := out[r]; o.State != scheduler.Review || o.ScheduledDays < 1 {
			t.Errorf("%v = (%v, %d days), want Review with at least one day", r, o.State, o.ScheduledDays)
		}
		if o := out[r]; o.ElapsedDays != 10 {
			t.Errorf("%v: ElapsedDays = %d, want 10", r, o.ElapsedDays)
		}
	}
}

// A same-day second look must never shrink stability on a successful recall.
func TestShortTermStability(t *testing.T) {
	e := testEngine(t, Config{})
	card := reviewCard(4, 5, 2*time.Hour)
	card.State = scheduler.Relearning

	out := e.Repeat(card, t0)
	for _, r := range []scheduler.Rating{scheduler.Good, scheduler.Easy} {
		if got := out[r].Stability; got < card.Stability {
			t.Errorf("%v same-day: Stability = %f dropped below %f", r, got, card.Stability)
		}
	}
}

func TestRetrievability(t *testing.T) {
	e := testEngine(t, Config{})

	if got := e.Retrievability(scheduler.Card{State: scheduler.New}, t0); got != 0 {
		t.Errorf("never-reviewed card: Retrievability = %f, want 0", got)
	}

	card := reviewCard(10, 5, 0)
	if got := e.Retrievability(card, t0); got != 1 {
		t.Errorf("at review instant: Retrievability = %f, want 1", got)
	}

	// Monotonically decaying, and 0.9 exactly when elapsed equals stability.
	prev := 1.0
	for _, days := range []int{1, 5, 10, 30} {
		got := e.Retrievability(card, t0.Add(time.Duration(days)*24*time.Hour))
		if got >= prev {
			t.Errorf("day %d: Retrievability = %f did not decay below %f", days, got, prev)
		}
		prev = got
	}
	at10 := e.Retrievability(card, t0.Add(10*24*time.Hour))
	if at10 < 0.899 || at10 > 0.901 {
		t.Errorf("R(S, S) = %f, want 0.9", at10)
	}
}

func TestDesiredRetentionShapesInterval(t *testing.T) {
	card := scheduler.Card{ID: 1, State: scheduler.New, Due: t0}

	strict := testEngine(t, Config{DesiredRetention: 0.95}).Repeat(card, t0)[scheduler.Good]
	relaxed := testEngine(t, Config{DesiredRetention: 0.8}).Repeat(card, t0)[scheduler.Good]

	if strict.ScheduledDays > relaxed.ScheduledDays {
		t.Errorf("0.95 retention scheduled %d days, beyond the %d of 0.8 retention",
			strict.ScheduledDays, relaxed.ScheduledDays)
	}
}

func TestMaximumIntervalClamp(t *testing.T) {
	e := testEngine(t, Config{MaximumInterval: 3})
	card := reviewCard(80, 3, 60*24*time.Hour)

	for _, r := range []scheduler.Rating{scheduler.Hard, scheduler.Good, scheduler.Easy} {
		if got := e.Repeat(card, t0)[r].ScheduledDays; got > 3 {
			t.Errorf("%v: ScheduledDays = %d exceeds maximum 3", r, got)
		}
	}
}

func TestApplyFuzz(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, short := range []int{0, 1, 2} {
		if got := applyFuzz(short, 36500, rng); got != short {
			t.Errorf("applyFuzz(%d) = %d, want short intervals untouched", short, got)
		}
	}

	for i := 0; i < 200; i++ {
		got := applyFuzz(30, 36500, rng)
		if got < 2 {
			t.Fatalf("applyFuzz(30) = %d, below floor", got)
		}
		delta := fuzzDelta(30)
		if float64(got) < 30-delta-1 || float64(got) > 30+delta+1 {
			t.Fatalf("applyFuzz(30) = %d outside window %f", got, delta)
		}
	}

	for i := 0; i < 50; i++ {
		if got := applyFuzz(30, 31, rng); got > 31 {
			t.Fatalf("applyFuzz(30, max 31) = %d exceeds cap", got)
		}
	}
}
