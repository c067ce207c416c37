package storage

import (
	"testing"
	"time"

	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/scheduler"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestCard(t *testing.T, db *DB, deck string, hash string) *Card {
	t.Helper()
	d, err := db.GetOrCreateDeck(deck, t0)
	if err != nil {
		t.Fatalf("GetOrCreateDeck: %v", err)
	}
	card := domain.Card{Question: "q " + hash, Answer: "a", Hash: hash}
	srcID, err := db.InsertSource("src-"+hash, "local")
	if err != nil {
		t.Fatalf("InsertSource: %v", err)
	}
	if err := db.InsertCard(card, d.ID, srcID, t0); err != nil {
		t.Fatalf("InsertCard: %v", err)
	}
	stored, err := db.FindCardByHash(hash)
	if err != nil || stored == nil {
		t.Fatalf("FindCardByHash: %v, card %v", err, stored)
	}
	return stored
}

func TestInsertAndFindCard(t *testing.T) {
	db := testDB(t)
	stored := insertTestCard(t, db, "Math::Algebra", "abc123")

	if stored.Sched.State != scheduler.New {
		t.Errorf("State = %v, want New", stored.Sched.State)
	}
	if stored.Sched.LastReview != nil {
		t.Errorf("LastReview = %v, want nil before first review", stored.Sched.LastReview)
	}
	if !stored.Sched.Due.Equal(t0) {
		t.Errorf("Due = %v, want insertion instant", stored.Sched.Due)
	}

	missing, err := db.FindCardByHash("no-such-hash")
	if err != nil {
		t.Fatalf("FindCardByHash: %v", err)
	}
	if missing != nil {
		t.Errorf("got %v for an unknown hash, want nil", missing)
	}
}

func TestGetCardsInDeckTree(t *testing.T) {
	db := testDB(t)
	insertTestCard(t, db, "Math", "h1")
	insertTestCard(t, db, "Math::Algebra", "h2")
	insertTestCard(t, db, "Mathematics", "h3") // sibling, not a descendant

	cards, err := db.GetCardsInDeckTree("Math")
	if err != nil {
		t.Fatalf("GetCardsInDeckTree: %v", err)
	}
	if len(cards) != 2 {
		t.Errorf("got %d cards in Math subtree, want 2", len(cards))
	}

	all, err := db.GetCardsInDeckTree("")
	if err != nil {
		t.Fatalf("GetCardsInDeckTree(root): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d cards at root, want 3", len(all))
	}
}

func TestSaveReview(t *testing.T) {
	db := testDB(t)
	stored := insertTestCard(t, db, "Math", "h1")

	card := stored.Sched
	now := t0.Add(time.Minute)
	card.State = scheduler.Learning
	card.Due = now.Add(10 * time.Minute)
	card.LastReview = &now
	card.Reps = 1
	card.Stability = 2.3

	entry := scheduler.ReviewLogEntry{
		CardID:     card.ID,
		Rating:     scheduler.Good,
		State:      card.State,
		Due:        card.Due,
		Stability:  card.Stability,
		ReviewedAt: now,
		TimeSpent:  4 * time.Second,
	}
	if err := db.SaveReview(card, entry, true); err != nil {
		t.Fatalf("SaveReview: %v", err)
	}

	after, err := db.FindCardByID(card.ID)
	if err != nil {
		t.Fatalf("FindCardByID: %v", err)
	}
	if after.Sched.State != scheduler.Learning || after.Sched.Reps != 1 {
		t.Errorf("card after review = (%v, %d reps), want (Learning, 1)", after.Sched.State, after.Sched.Reps)
	}
	if after.Sched.LastReview == nil || !after.Sched.LastReview.Equal(now) {
		t.Errorf("LastReview = %v, want %v", after.Sched.LastReview, now)
	}

	n, err := db.ReviewCount(card.ID)
	if err != nil {
		t.Fatalf("ReviewCount: %v", err)
	}
	if n != 1 {
		t.Errorf("ReviewCount = %d, want 1", n)
	}

	// A new-card review consumes the new counter, not the review counter.
	deck, err := db.FindDeckByName("Math")
	if err != nil {
		t.Fatalf("FindDeckByName: %v", err)
	}
	if deck.NewToday != 1 || deck.ReviewToday != 0 {
		t.Errorf("counters = (%d new, %d review), want (1, 0)", deck.NewToday, deck.ReviewToday)
	}
}

func TestResetDeckDay(t *testing.T) {
	db := testDB(t)
	deck, err := db.GetOrCreateDeck("Math", t0)
	if err != nil {
		t.Fatalf("GetOrCreateDeck: %v", err)
	}
	five := 5
	if err := db.SetDeckLimits(deck.ID, &five, nil, nil, nil); err != nil {
		t.Fatalf("SetDeckLimits: %v", err)
	}
	deck, err = db.FindDeckByName("Math")
	if err != nil {
		t.Fatalf("FindDeckByName: %v", err)
	}
	if deck.NewLimitToday == nil || *deck.NewLimitToday != 5 {
		t.Fatalf("NewLimitToday = %v, want 5", deck.NewLimitToday)
	}

	// Same logical day: nothing changes.
	same, err := db.ResetDeckDay(deck, t0.Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("ResetDeckDay: %v", err)
	}
	if same.NewLimitToday == nil {
		t.Error("same-day reset cleared the custom today cap")
	}

	// Next logical day: counters zeroed, today caps cleared, marker moved.
	tomorrow := t0.Add(26 * time.Hour)
	rolled, err := db.ResetDeckDay(deck, tomorrow, 0)
	if err != nil {
		t.Fatalf("ResetDeckDay: %v", err)
	}
	if rolled.NewLimitToday != nil || rolled.RevLimitToday != nil {
		t.Errorf("today caps = (%v, %v), want cleared", rolled.NewLimitToday, rolled.RevLimitToday)
	}
	if rolled.NewToday != 0 || rolled.ReviewToday != 0 {
		t.Errorf("counters = (%d, %d), want zeroed", rolled.NewToday, rolled.ReviewToday)
	}
	if !scheduler.SameDay(rolled.Today, tomorrow, 0) {
		t.Errorf("Today = %v, want rolled to %v", rolled.Today, tomorrow)
	}
}

func TestDeleteSourceCascades(t *testing.T) {
	db := testDB(t)
	stored := insertTestCard(t, db, "Math", "h1")

	if err := db.DeleteSource(stored.SourceID.Int64); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	card, err := db.FindCardByHash("h1")
	if err != nil {
		t.Fatalf("FindCardByHash: %v", err)
	}
	if card != nil {
		t.Error("card survived its source's deletion")
	}
	sources, err := db.GetAllSources()
	if err != nil {
		t.Fatalf("GetAllSources: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources, want 0", len(sources))
	}
}
