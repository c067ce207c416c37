// Package scheduler is the decision engine of knoldeck: given cards, their
// review history, and deck configuration, it decides what state a card
// enters after a review, how many new and review cards a deck may serve
// today, which due bucket each card sits in, and which card a study
// session presents next.
//
// Every function here is pure over its inputs. The current instant is
// always passed in, never read from the system clock, and all persistence
// belongs to callers. Day arithmetic is centralized in StartOfDay and
// DaysBetween so the notion of "today" never diverges between components.
//
// The stability/difficulty mathematics lives behind the MemoryModel
// interface; internal/fsrs provides the production implementation.
package scheduler
