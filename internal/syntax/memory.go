package syntax

import (
	"fmt"
	"strings"
)

// MemNode is an in-memory Node used to build trees without a grammar
type MemNode struct {
	NodeKind string
	Start    int
	End      int
	StartPt  Point
	EndPt    Point
	Children []*MemNode
	Error    bool
}

func (n *MemNode) Kind() string      { return n.NodeKind }
func (n *MemNode) StartByte() int    { return n.Start }
func (n *MemNode) EndByte() int      { return n.End }
func (n *MemNode) StartPoint() Point { return n.StartPt }
func (n *MemNode) EndPoint() Point   { return n.EndPt }
func (n *MemNode) ChildCount() int   { return len(n.Children) }

func (n *MemNode) Child(i int) Node {
	if i < 0 || i >= len(n.Children) || n.Children[i] == nil {
		return nil
	}
	return n.Children[i]
}

// HasError reports whether this node or any descendant is an error node
func (n *MemNode) HasError() bool {
	if n.Error {
		return true
	}
	for _, c := range n.Children {
		if c != nil && c.HasError() {
			return true
		}
	}
	return false
}

// MemTree wraps a MemNode root
type MemTree struct {
	RootNode *MemNode
}

// Root returns the root node, or nil when the tree is empty
func (t *MemTree) Root() Node {
	if t.RootNode == nil {
		return nil
	}
	return t.RootNode
}

func (t *MemTree) Close() {}

// Builder creates MemNodes whose spans point into a fixed source text
type Builder struct {
	src        string
	lineStarts []int
}

// NewBuilder returns a Builder over src
func NewBuilder(src string) *Builder {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Builder{src: src, lineStarts: starts}
}

// Source returns the text the builder spans
func (b *Builder) Source() []byte {
	return []byte(b.src)
}

func (b *Builder) point(offset int) Point {
	row := 0
	for i, s := range b.lineStarts {
		if s > offset {
			break
		}
		row = i
	}
	return Point{Row: row, Column: offset - b.lineStarts[row]}
}

// At creates a node spanning the byte range [start, end)
func (b *Builder) At(kind string, start, end int, children ...*MemNode) *MemNode {
	return &MemNode{
		NodeKind: kind,
		Start:    start,
		End:      end,
		StartPt:  b.point(start),
		EndPt:    b.point(end),
		Children: children,
	}
}

// Lines creates a node spanning 1-based lines first through last
func (b *Builder) Lines(kind string, first, last int, children ...*MemNode) *MemNode {
	if first < 1 || last < first || last > len(b.lineStarts) {
		panic(fmt.Sprintf("syntax: invalid line range %d-%d", first, last))
	}
	end := len(b.src)
	if last < len(b.lineStarts) {
		end = b.lineStarts[last] - 1
	}
	return b.At(kind, b.lineStarts[first-1], end, children...)
}

// Text creates a node spanning the first occurrence of text on 1-based line.
// A line of 0 searches the whole source.
func (b *Builder) Text(kind, text string, line int, children ...*MemNode) *MemNode {
	from := 0
	if line > 0 {
		from = b.lineStarts[line-1]
	}
	idx := strings.Index(b.src[from:], text)
	if idx < 0 {
		panic(fmt.Sprintf("syntax: %q not found from line %d", text, line))
	}
	return b.At(kind, from+idx, from+idx+len(text), children...)
}

// Root creates a node spanning the entire source
func (b *Builder) Root(kind string, children ...*MemNode) *MemNode {
	return b.At(kind, 0, len(b.src), children...)
}

// Tree wraps root in a MemTree
func (b *Builder) Tree(root *MemNode) *MemTree {
	return &MemTree{RootNode: root}
}
