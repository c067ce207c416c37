package scheduler

import (
	"fmt"
	"time"
)

// Queue controls whether a card may be selected for study.
type Queue int

const (
	QueueNormal    Queue = iota // Selectable.
	QueueBuried                 // Hidden until the next logical day.
	QueueSuspended              // Hidden until explicitly un-suspended.
)

var queueNames = [...]string{QueueNormal: "normal", QueueBuried: "buried", QueueSuspended: "suspended"}

// String returns the name of the queue flag.
func (q Queue) String() string {
	if q >= QueueNormal && q <= QueueSuspended {
		return queueNames[q]
	}
	return fmt.Sprintf("Queue(%d)", int(q))
}

// Card is the scheduling state of one review item.
//
// LastReview is nil exactly while State is New. ElapsedDays and
// ScheduledDays count logical days, not raw durations; they are maintained
// by Session.Review and the memory model, never derived ad hoc.
type Card struct {
	ID            int64
	DeckID        int64
	State         State
	Queue         Queue
	Due           time.Time
	LastReview    *time.Time
	LastEdited    time.Time
	Reps          int
	Lapses        int
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
}

// NewCard creates a card in the New state, due immediately.
func NewCard(id, deckID int64, now time.Time) Card {
	return Card{
		ID:         id,
		DeckID:     deckID,
		State:      New,
		Due:        now,
		LastEdited: now,
	}
}

// clone returns a copy of the card with pointer fields copied by value.
func (c Card) clone() Card {
	out := c
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}

// applyOutcome overwrites the card's scheduling fields with an engine outcome.
func (c *Card) applyOutcome(o Outcome) {
	c.State = o.State
	c.Due = o.Due
	c.Stability = o.Stability
	c.Difficulty = o.Difficulty
	c.Lapses = o.Lapses
	c.Reps = o.Reps
	c.ElapsedDays = o.ElapsedDays
	c.ScheduledDays = o.ScheduledDays
}
