package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderSpans(t *testing.T) {
	src := "unit U;\ntype\n  TFoo = class\n  end;\n"
	b := NewBuilder(src)

	cls := b.Lines("class_type", 3, 4, b.Text("identifier", "TFoo", 3))
	root := b.Root("root", cls)
	tree := b.Tree(root)

	require.NotNil(t, tree.Root())
	assert.Equal(t, 1, tree.Root().ChildCount())

	got := tree.Root().Child(0)
	assert.Equal(t, "class_type", got.Kind())
	assert.Equal(t, 2, got.StartPoint().Row)
	assert.Equal(t, 3, got.EndPoint().Row)
	assert.Equal(t, "  TFoo = class\n  end;", Text(got, b.Source()))

	ident := FirstChildOfKind(got, "identifier")
	require.NotNil(t, ident)
	assert.Equal(t, "TFoo", Text(ident, b.Source()))
	assert.Equal(t, Point{Row: 2, Column: 2}, ident.StartPoint())

	assert.Nil(t, got.Child(5))
	assert.Nil(t, FirstChildOfKind(got, "missing"))
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(&MemTree{}))

	b := NewBuilder("x")
	assert.True(t, IsEmpty(b.Tree(b.Root("root"))))
	assert.False(t, IsEmpty(b.Tree(b.Root("root", b.Text("identifier", "x", 1)))))
}

func TestHasErrorPropagates(t *testing.T) {
	b := NewBuilder("a b")
	bad := b.Text("ERROR", "b", 1)
	bad.Error = true
	root := b.Root("root", b.Text("identifier", "a", 1), bad)
	assert.True(t, root.HasError())
	assert.False(t, root.Children[0].HasError())
}

func TestTextClampsRange(t *testing.T) {
	n := &MemNode{Start: 2, End: 99}
	assert.Equal(t, "c", Text(n, []byte("abc")))
	assert.Equal(t, "", Text(nil, []byte("abc")))
}
