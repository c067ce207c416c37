package domain

// Card is one authored question-answer-context entry as parsed from a
// source file, before any scheduling state attaches to it. Deck is the
// `::`-delimited deck path the card belongs to; empty means the default
// deck.
type Card struct {
	Question string
	Answer   string
	Context  string
	Deck     string
	Hash     string
}
