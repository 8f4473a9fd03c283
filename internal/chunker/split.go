package chunker

import (
	"unicode/utf8"

	"github.com/dshills/delphirag/internal/tokenizer"
)

// piece is one window of a split text
type piece struct {
	text   string
	tokens int
}

// split cuts text into windows of at most MaxTokens tokens where each window
// starts OverlapTokens tokens before the previous one ended.
func (c *Chunker) split(text string) []piece {
	tokens, err := c.tok.Encode(text)
	if err != nil {
		return c.splitRunes(text)
	}
	if len(tokens) <= c.cfg.MaxTokens {
		return []piece{{text: text, tokens: len(tokens)}}
	}

	var pieces []piece
	start := 0
	for {
		end := start + c.cfg.MaxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		part, err := c.tok.Decode(tokens[start:end])
		if err != nil {
			return c.splitRunes(text)
		}
		pieces = append(pieces, piece{text: part, tokens: end - start})
		if end == len(tokens) {
			return pieces
		}
		start = end - c.cfg.OverlapTokens
	}
}

// splitRunes windows text by characters when it cannot be encoded,
// sizing windows with the fallback ratio
func (c *Chunker) splitRunes(text string) []piece {
	window := c.cfg.MaxTokens / tokenizer.FallbackTokensPerRune
	if window < 1 {
		window = 1
	}
	overlap := c.cfg.OverlapTokens / tokenizer.FallbackTokensPerRune
	if overlap >= window {
		overlap = window - 1
	}

	if utf8.RuneCountInString(text) <= window {
		return []piece{{text: text, tokens: c.tok.Count(text)}}
	}

	runes := []rune(text)
	var pieces []piece
	start := 0
	for {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		part := string(runes[start:end])
		pieces = append(pieces, piece{text: part, tokens: c.tok.Count(part)})
		if end == len(runes) {
			return pieces
		}
		start = end - overlap
	}
}
