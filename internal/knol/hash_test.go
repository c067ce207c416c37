package knol

import (
	"testing"

	"github.com/conorfennell/knoldeck/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Question: "  What is FSRS? \r\n",
		Answer:   "A spaced repetition algorithm.",
		Context:  "Scheduling",
	}
	expected := "what is fsrs?\na spaced repetition algorithm."
	if got := Normalize(card); got != expected {
		t.Errorf("Normalize = %q, want %q", got, expected)
	}
}

func TestHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		card1 := domain.Card{Question: "Test", Answer: "Answer"}
		card2 := domain.Card{Question: "Test", Answer: "Answer"}
		if Hash(card1) != Hash(card2) {
			t.Error("identical cards should hash identically")
		}
	})

	t.Run("normalization folds whitespace and case", func(t *testing.T) {
		card1 := domain.Card{Question: "  what is go? ", Answer: "A programming language."}
		card2 := domain.Card{Question: "What Is Go?", Answer: "A programming language."}
		if Hash(card1) != Hash(card2) {
			t.Error("normalized variants should hash identically")
		}
	})

	t.Run("context does not affect identity", func(t *testing.T) {
		card1 := domain.Card{Question: "Q", Answer: "A", Context: "old note"}
		card2 := domain.Card{Question: "Q", Answer: "A", Context: "rewritten note"}
		if Hash(card1) != Hash(card2) {
			t.Error("editing context should not change the hash")
		}
	})

	t.Run("deck does not affect identity", func(t *testing.T) {
		card1 := domain.Card{Question: "Q", Answer: "A", Deck: "Math"}
		card2 := domain.Card{Question: "Q", Answer: "A", Deck: "Math::Algebra"}
		if Hash(card1) != Hash(card2) {
			t.Error("re-filing a card should not change the hash")
		}
	})

	t.Run("different content differs", func(t *testing.T) {
		card1 := domain.Card{Question: "Card 1"}
		card2 := domain.Card{Question: "Card 2"}
		if Hash(card1) == Hash(card2) {
			t.Error("different cards should hash differently")
		}
	})
}
