package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Normalize concatenates the card's question and answer after cleaning
// each part: trimmed, lowercased, line endings normalized. Context and
// deck are deliberately excluded so that re-filing a card or editing its
// context note does not orphan its scheduling state.
func Normalize(card domain.Card) string {
	parts := []string{card.Question, card.Answer}
	for i, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		parts[i] = strings.ReplaceAll(p, "\r\n", "\n")
	}
	// A newline separator keeps "question"+"answer" from colliding with
	// "questiona"+"nswer".
	return strings.Join(parts, "\n")
}

// Hash returns the card's identity: the SHA-256 of its normalized content,
// hex encoded.
func Hash(card domain.Card) string {
	sum := sha256.Sum256([]byte(Normalize(card)))
	return hex.EncodeToString(sum[:])
}
