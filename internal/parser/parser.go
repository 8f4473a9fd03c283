package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dshills/delphirag/internal/syntax"
	"github.com/dshills/delphirag/pkg/types"
)

// Capability selects which extraction a Parser performs
type Capability uint8

const (
	// CapabilityGraph extracts entities and relationships
	CapabilityGraph Capability = 1 << iota
	// CapabilityFlat extracts the flat outline
	CapabilityFlat

	CapabilityBoth = CapabilityGraph | CapabilityFlat
)

// ParseCapability converts a configuration string into a Capability
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "graph":
		return CapabilityGraph, nil
	case "flat":
		return CapabilityFlat, nil
	case "both", "":
		return CapabilityBoth, nil
	default:
		return 0, fmt.Errorf("unknown capability %q", s)
	}
}

// ErrNoProvider is returned when a Parser has no syntax provider
var ErrNoProvider = errors.New("no syntax provider configured")

// Config configures a Parser
type Config struct {
	Grammar      *Grammar
	Capability   Capability
	Disambiguate bool
}

// Parser turns Pascal/Delphi source into entities, relationships and outlines
type Parser struct {
	provider   syntax.Parser
	extractor  *Extractor
	capability Capability
}

// New creates a Parser. provider may be nil, in which case Parse always
// fails with ErrParseFailure and callers fall back to text chunking.
func New(provider syntax.Parser, cfg Config) *Parser {
	if cfg.Capability == 0 {
		cfg.Capability = CapabilityBoth
	}
	return &Parser{
		provider:   provider,
		extractor:  NewExtractor(cfg.Grammar, cfg.Disambiguate),
		capability: cfg.Capability,
	}
}

// Available reports whether a syntax provider is configured
func (p *Parser) Available() bool {
	return p.provider != nil
}

// Parse parses src and extracts definitions. Provider failures are
// returned wrapped in types.ErrParseFailure; error nodes in an otherwise
// usable tree are recorded in the result instead.
func (p *Parser) Parse(ctx context.Context, fileLabel string, src []byte) (result *types.ParseResult, err error) {
	if len(bytes.TrimSpace(src)) == 0 {
		return &types.ParseResult{}, nil
	}
	if p.provider == nil {
		return nil, fmt.Errorf("%w: %w", types.ErrParseFailure, ErrNoProvider)
	}

	tree, err := p.provider.Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrParseFailure, err)
	}
	defer tree.Close()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: extraction panicked: %v", types.ErrParseFailure, r)
		}
	}()

	result = p.Extract(tree, src, fileLabel)
	if root := tree.Root(); root != nil && root.HasError() {
		line, col := firstError(root)
		result.AddError(fileLabel, line, col, "syntax tree contains errors")
	}
	return result, nil
}

// Extract runs the configured extractions over an existing tree
func (p *Parser) Extract(tree syntax.Tree, src []byte, fileLabel string) *types.ParseResult {
	result := &types.ParseResult{}
	if p.capability&CapabilityGraph != 0 {
		result.Entities, result.Relationships = p.extractor.ExtractGraph(tree, src, fileLabel)
	}
	if p.capability&CapabilityFlat != 0 {
		result.Outline = p.extractor.ExtractFlat(tree, src)
	}
	return result
}

// Close releases the syntax provider
func (p *Parser) Close() {
	if p.provider != nil {
		p.provider.Close()
	}
}

// firstError returns the 1-based position of the first error node under n
func firstError(n syntax.Node) (int, int) {
	stack := []syntax.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.Kind() == "ERROR" {
			p := cur.StartPoint()
			return p.Row + 1, p.Column + 1
		}
		for i := cur.ChildCount() - 1; i >= 0; i-- {
			if c := cur.Child(i); c != nil && c.HasError() {
				stack = append(stack, c)
			}
		}
	}
	p := n.StartPoint()
	return p.Row + 1, p.Column + 1
}
