package syntax

import "context"

// Point is a 0-based row/column position in source text
type Point struct {
	Row    int
	Column int
}

// Node is a read-only view of a syntax tree node.
// Child returns nil for out-of-range indices.
type Node interface {
	Kind() string
	StartByte() int
	EndByte() int
	StartPoint() Point
	EndPoint() Point
	ChildCount() int
	Child(i int) Node
	HasError() bool
}

// Tree is a parsed syntax tree. Root returns nil for an empty tree.
type Tree interface {
	Root() Node
	Close()
}

// Parser produces syntax trees from raw source bytes
type Parser interface {
	Parse(ctx context.Context, src []byte) (Tree, error)
	Close()
}

// Text returns the source slice spanned by n
func Text(n Node, src []byte) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > len(src) {
		end = len(src)
	}
	if start < 0 || start >= end {
		return ""
	}
	return string(src[start:end])
}

// Children returns the immediate children of n in order
func Children(n Node) []Node {
	if n == nil {
		return nil
	}
	count := n.ChildCount()
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildOfKind returns the first immediate child with the given kind
func FirstChildOfKind(n Node, kind string) Node {
	for _, c := range Children(n) {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// IsEmpty reports whether a tree has no content to traverse
func IsEmpty(t Tree) bool {
	if t == nil {
		return true
	}
	root := t.Root()
	return root == nil || root.ChildCount() == 0
}
