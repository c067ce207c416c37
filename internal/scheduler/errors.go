package scheduler

import "errors"

// Sentinel errors for the scheduler package. Check with errors.Is.
//
// ErrNothingDue and ErrNewLimitReached are the two exhaustion outcomes of
// next-card selection. They are expected conditions, not failures, and
// callers must surface them to the user as distinct states.
var (
	ErrInvalidRating     = errors.New("scheduler: invalid rating")
	ErrInvalidState      = errors.New("scheduler: invalid card state")
	ErrEngineNewState    = errors.New("scheduler: memory model produced New after a review")
	ErrMissingLastReview = errors.New("scheduler: card outside New state has no last review")
	ErrNothingDue        = errors.New("scheduler: no cards due yet")
	ErrNewLimitReached   = errors.New("scheduler: new card limit reached for today")
)
