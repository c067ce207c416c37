// Package parser extracts cards from plain-text source files. A file is a
// sequence of Q:/A:/C: blocks, optionally separated by "---" lines. A
// "# deck:" directive assigns every following card to a `::`-delimited deck
// path until the next directive.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knoldeck/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	deckDirective  = "# deck:"
	separator      = "---"
)

type field int

const (
	none field = iota
	question
	answer
	contextNote
)

// ParseFile reads the file at path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads from r and extracts all cards in order of appearance.
// Cards without a question are dropped.
func Parse(r io.Reader) ([]domain.Card, error) {
	var (
		cards   []domain.Card
		card    domain.Card
		block   []string
		current field
		deck    string
	)

	store := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch current {
		case question:
			card.Question = content
		case answer:
			card.Answer = content
		case contextNote:
			card.Context = content
		}
		block = nil
	}

	finish := func() {
		store()
		if card.Question != "" {
			card.Deck = deck
			cards = append(cards, card)
		}
		card = domain.Card{}
		current = none
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, deckDirective) {
			finish()
			deck = strings.TrimSpace(line[len(deckDirective):])
			continue
		}
		if line == separator {
			finish()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			// A new question always starts a new card.
			finish()
			current = question
			block = append(block, strings.TrimPrefix(line[len(questionPrefix):], " "))
		case strings.HasPrefix(line, answerPrefix):
			store()
			current = answer
			block = append(block, strings.TrimPrefix(line[len(answerPrefix):], " "))
		case strings.HasPrefix(line, contextPrefix):
			store()
			current = contextNote
			block = append(block, strings.TrimPrefix(line[len(contextPrefix):], " "))
		default:
			if current != none {
				block = append(block, line)
			}
		}
	}
	finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}
