package chunker

import "fmt"

// RangeScan selects how the end of a definition is located from its anchor line
type RangeScan string

const (
	// ScanLine stops at the first "end;"/"end." line or before the next
	// unindented line
	ScanLine RangeScan = "line"

	// ScanBalanced counts begin/end nesting depth
	ScanBalanced RangeScan = "balanced"

	// ScanExplicit uses end lines reported by the parser, falling back to ScanLine
	ScanExplicit RangeScan = "explicit"
)

// Strategy selects how a parsed source file is chunked
type Strategy string

const (
	// StrategyAuto picks a strategy from the file size category
	StrategyAuto Strategy = "auto"
	// StrategyEntities chunks along extracted entities
	StrategyEntities Strategy = "entities"
	// StrategySections always uses section delimiters
	StrategySections Strategy = "sections"
	// StrategyWhole emits the whole file
	StrategyWhole Strategy = "whole"
)

const (
	// DefaultMaxTokens keeps chunks under the 8191 token embedding limit
	DefaultMaxTokens = 8000

	// DefaultOverlapTokens is shared between consecutive split parts
	DefaultOverlapTokens = 100

	// DefaultLookahead caps range inference
	DefaultLookahead = 50

	// sectionFlushRatio of MaxTokens triggers a flush at a section start
	sectionFlushRatio = 0.5
)

// Config controls chunk sizing and range inference
type Config struct {
	MaxTokens     int
	OverlapTokens int
	RangeScan     RangeScan
	Lookahead     int
	Strategy      Strategy
}

// DefaultConfig returns the default chunking configuration
func DefaultConfig() Config {
	return Config{
		MaxTokens:     DefaultMaxTokens,
		OverlapTokens: DefaultOverlapTokens,
		RangeScan:     ScanLine,
		Lookahead:     DefaultLookahead,
		Strategy:      StrategyAuto,
	}
}

// normalize fills defaults and clamps OverlapTokens into [0, MaxTokens-1]
func (c Config) normalize() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.OverlapTokens < 0 {
		c.OverlapTokens = 0
	}
	if c.OverlapTokens >= c.MaxTokens {
		c.OverlapTokens = c.MaxTokens - 1
	}
	if c.Lookahead <= 0 {
		c.Lookahead = DefaultLookahead
	}
	if c.RangeScan == "" {
		c.RangeScan = ScanLine
	}
	if c.Strategy == "" {
		c.Strategy = StrategyAuto
	}
	return c
}

// Validate reports configuration values that cannot be normalized
func (c Config) Validate() error {
	switch c.RangeScan {
	case "", ScanLine, ScanBalanced, ScanExplicit:
	default:
		return fmt.Errorf("unknown range scan %q", c.RangeScan)
	}
	switch c.Strategy {
	case "", StrategyAuto, StrategyEntities, StrategySections, StrategyWhole:
	default:
		return fmt.Errorf("unknown chunking strategy %q", c.Strategy)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative, got %d", c.MaxTokens)
	}
	return nil
}
