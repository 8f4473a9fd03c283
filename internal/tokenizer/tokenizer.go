package tokenizer

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dshills/delphirag/pkg/types"
)

const (
	// DefaultModel selects the encoding when no model is configured
	DefaultModel = "text-embedding-3-large"

	// DefaultEncoding is used when the model has no registered encoding
	DefaultEncoding = "cl100k_base"

	// FallbackTokensPerRune is the conservative ratio used when encoding fails
	FallbackTokensPerRune = 2
)

// ErrUnavailable is returned by Encode/Decode when no encoding is loaded
var ErrUnavailable = types.ErrTokenizerUnavailable

// Tokenizer counts, encodes and decodes text in model tokens
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
	Count(text string) int
}

// encoding is the subset of *tiktoken.Tiktoken used here
type encoding interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Counter is a Tokenizer backed by a tiktoken encoding.
// With no encoding loaded every count uses the fallback estimate.
type Counter struct {
	enc  encoding
	name string
}

// New loads the encoding for model
func New(model string) (*Counter, error) {
	if model == "" {
		model = DefaultModel
	}
	useOfflineBPE()
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to load encoding for %s: %w", model, err)
		}
	}
	return &Counter{enc: enc, name: model}, nil
}

// NewWithFallback loads the encoding for model, returning an estimating
// Counter when it cannot be loaded
func NewWithFallback(model string) (*Counter, error) {
	c, err := New(model)
	if err != nil {
		return &Counter{name: "estimate"}, err
	}
	return c, nil
}

// Estimator returns a Counter that only uses the fallback estimate
func Estimator() *Counter {
	return &Counter{name: "estimate"}
}

// Name identifies the model or mode the counter was built for
func (c *Counter) Name() string {
	return c.name
}

// Exact reports whether counts come from a real encoding
func (c *Counter) Exact() bool {
	return c.enc != nil
}

// Encode converts text into tokens. Special token markers in text are an error.
func (c *Counter) Encode(text string) (tokens []int, err error) {
	if c.enc == nil {
		return nil, ErrUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
			err = fmt.Errorf("encode failed: %v", r)
		}
	}()
	return c.enc.Encode(text, nil, []string{"all"}), nil
}

// Decode converts tokens back into text
func (c *Counter) Decode(tokens []int) (text string, err error) {
	if c.enc == nil {
		return "", ErrUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("decode failed: %v", r)
		}
	}()
	return c.enc.Decode(tokens), nil
}

// Count returns the token count of text, falling back to Estimate when
// the encoding fails
func (c *Counter) Count(text string) int {
	tokens, err := c.Encode(text)
	if err != nil {
		return Estimate(text)
	}
	return len(tokens)
}

// Estimate is the fallback token count: two tokens per character
func Estimate(text string) int {
	return utf8.RuneCountInString(text) * FallbackTokensPerRune
}
