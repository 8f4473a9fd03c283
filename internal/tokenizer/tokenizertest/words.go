// Package tokenizertest provides a deterministic Tokenizer for tests.
package tokenizertest

import (
	"strings"
	"sync"
	"unicode"
)

// Words tokenizes text into whitespace-delimited pieces. Each token is a word
// together with the whitespace that follows it, so Decode(Encode(s)) == s.
type Words struct {
	mu     sync.Mutex
	vocab  map[string]int
	pieces []string
}

// New returns an empty Words tokenizer
func New() *Words {
	return &Words{vocab: make(map[string]int)}
}

// Encode assigns each new piece the next free id
func (w *Words) Encode(text string) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var tokens []int
	for _, piece := range split(text) {
		id, ok := w.vocab[piece]
		if !ok {
			id = len(w.pieces)
			w.vocab[piece] = id
			w.pieces = append(w.pieces, piece)
		}
		tokens = append(tokens, id)
	}
	return tokens, nil
}

// Decode concatenates the pieces of tokens. Ids must come from Encode.
func (w *Words) Decode(tokens []int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var sb strings.Builder
	for _, t := range tokens {
		sb.WriteString(w.pieces[t])
	}
	return sb.String(), nil
}

// Count returns the number of pieces without growing the vocabulary
func (w *Words) Count(text string) int {
	return len(split(text))
}

func split(text string) []string {
	var pieces []string
	start := 0
	inSpace := true
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && inSpace && i > start && !allSpace(text[start:i]) {
			pieces = append(pieces, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}

func allSpace(s string) bool {
	return strings.TrimSpace(s) == ""
}
