package treesitter

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/dshills/delphirag/internal/syntax"
)

// ErrNoTree is returned when the grammar produced no tree
var ErrNoTree = errors.New("tree-sitter returned no tree")

// Parser adapts a tree-sitter language to syntax.Parser.
// A fresh sitter.Parser is created per call, so Parser is safe for concurrent use.
type Parser struct {
	lang *sitter.Language
}

// NewParser returns a Parser for lang
func NewParser(lang *sitter.Language) (*Parser, error) {
	if lang == nil {
		return nil, errors.New("language is required")
	}
	return &Parser{lang: lang}, nil
}

// Parse parses src into a syntax tree
func (p *Parser) Parse(ctx context.Context, src []byte) (syntax.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sp := sitter.NewParser()
	defer sp.Close()

	if err := sp.SetLanguage(p.lang); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	tree := sp.Parse(src, nil)
	if tree == nil {
		return nil, ErrNoTree
	}
	return &Tree{inner: tree}, nil
}

// Close releases parser resources
func (p *Parser) Close() {}

// Tree wraps a tree-sitter tree
type Tree struct {
	inner *sitter.Tree
}

// Root returns the root node
func (t *Tree) Root() syntax.Node {
	root := t.inner.RootNode()
	if root == nil {
		return nil
	}
	return &Node{inner: root}
}

// Close frees the underlying tree
func (t *Tree) Close() {
	t.inner.Close()
}

// Node wraps a tree-sitter node
type Node struct {
	inner *sitter.Node
}

func (n *Node) Kind() string   { return n.inner.Kind() }
func (n *Node) StartByte() int { return int(n.inner.StartByte()) }
func (n *Node) EndByte() int   { return int(n.inner.EndByte()) }
func (n *Node) HasError() bool { return n.inner.HasError() }

func (n *Node) StartPoint() syntax.Point {
	p := n.inner.StartPosition()
	return syntax.Point{Row: int(p.Row), Column: int(p.Column)}
}

func (n *Node) EndPoint() syntax.Point {
	p := n.inner.EndPosition()
	return syntax.Point{Row: int(p.Row), Column: int(p.Column)}
}

func (n *Node) ChildCount() int {
	return int(n.inner.ChildCount())
}

func (n *Node) Child(i int) syntax.Node {
	if i < 0 {
		return nil
	}
	child := n.inner.Child(uint(i))
	if child == nil {
		return nil
	}
	return &Node{inner: child}
}
