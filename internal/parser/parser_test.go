package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/delphirag/internal/syntax"
	"github.com/dshills/delphirag/pkg/types"
)

const classUnit = `unit Test;
interface
type
  TFoo = class
    procedure Bar;
  end;
implementation
procedure TFoo.Bar;
begin
end;
end.`

// classTree builds the canonical tree for classUnit
func classTree() (*syntax.Builder, *syntax.MemTree) {
	b := syntax.NewBuilder(classUnit)
	root := b.Root("root",
		b.Lines("class_type", 4, 6,
			b.Text("identifier", "TFoo", 4),
			b.Lines("procedure_declaration", 5, 5,
				b.Text("identifier", "Bar", 5),
			),
		),
		b.Lines("procedure_declaration", 8, 10,
			b.Text("genericDot", "TFoo.Bar", 8,
				b.Text("identifier", "TFoo", 8),
				b.Text(".", ".", 8),
				b.Text("identifier", "Bar", 8),
			),
		),
	)
	return b, b.Tree(root)
}

func TestExtractGraph_ClassWithMember(t *testing.T) {
	b, tree := classTree()
	e := NewExtractor(CanonicalGrammar(), false)

	entities, rels := e.ExtractGraph(tree, b.Source(), "test.pas")

	require.Len(t, entities, 3)
	assert.Equal(t, "test.pas:TFoo", entities[0].ID)
	assert.Equal(t, types.KindClass, entities[0].Kind)
	assert.Equal(t, 4, entities[0].SourceLine)
	assert.Equal(t, 6, entities[0].EndLine)
	assert.Equal(t, "class named TFoo in test.pas", entities[0].Description)
	assert.Equal(t, "file:test.pas_line:3", entities[0].SourceID)

	assert.Equal(t, "test.pas:Bar", entities[1].ID)
	assert.Equal(t, types.KindProcedure, entities[1].Kind)
	assert.Equal(t, 5, entities[1].SourceLine)

	require.Len(t, rels, 1)
	assert.Equal(t, "test.pas:TFoo", rels[0].SourceID)
	assert.Equal(t, "test.pas:Bar", rels[0].TargetID)
	assert.Equal(t, "Bar is a member of test.pas:TFoo", rels[0].Description)
	assert.Equal(t, "test.pas:TFoo Bar", rels[0].Keywords)
	assert.Equal(t, 1.0, rels[0].Weight)
}

func TestExtractGraph_QualifiedImplementationName(t *testing.T) {
	b, tree := classTree()
	e := NewExtractor(CanonicalGrammar(), false)

	entities, rels := e.ExtractGraph(tree, b.Source(), "test.pas")

	require.Len(t, entities, 3)
	impl := entities[2]
	assert.Equal(t, "Bar", impl.Name)
	assert.Equal(t, "test.pas:Bar", impl.ID)
	assert.Equal(t, 8, impl.SourceLine)

	// The top-level implementation has no enclosing definition
	assert.Len(t, rels, 1)
	// Declaration and implementation share an id by default
	assert.Equal(t, entities[1].ID, impl.ID)
}

func TestExtractGraph_Disambiguation(t *testing.T) {
	b, tree := classTree()
	e := NewExtractor(CanonicalGrammar(), true)

	entities, _ := e.ExtractGraph(tree, b.Source(), "test.pas")

	require.Len(t, entities, 3)
	assert.Equal(t, "test.pas:Bar", entities[1].ID)
	assert.Equal(t, "test.pas:Bar@L8", entities[2].ID)
}

func TestExtractGraph_IDsAreDeterministic(t *testing.T) {
	b, tree := classTree()
	e := NewExtractor(CanonicalGrammar(), false)

	first, firstRels := e.ExtractGraph(tree, b.Source(), "test.pas")
	second, secondRels := e.ExtractGraph(tree, b.Source(), "test.pas")

	assert.Equal(t, first, second)
	assert.Equal(t, firstRels, secondRels)
}

func TestExtractGraph_NestingInvariant(t *testing.T) {
	b, tree := classTree()
	e := NewExtractor(CanonicalGrammar(), false)

	entities, rels := e.ExtractGraph(tree, b.Source(), "test.pas")

	ids := make(map[string]bool)
	for _, en := range entities {
		ids[en.ID] = true
	}
	for _, r := range rels {
		assert.True(t, ids[r.SourceID], r.SourceID)
		assert.True(t, ids[r.TargetID], r.TargetID)
		assert.NotEqual(t, r.SourceID, r.TargetID)
	}
}

func TestExtractGraph_AnonymousPassThrough(t *testing.T) {
	src := `type
  TOuter = class
    procedure;
      function Inner: Integer;
  end;`
	b := syntax.NewBuilder(src)
	root := b.Root("root",
		b.Lines("class_type", 2, 5,
			b.Text("identifier", "TOuter", 2),
			b.Lines("procedure_declaration", 3, 4,
				b.Text("keyword", "procedure", 3),
				b.Lines("function_declaration", 4, 4,
					b.Text("identifier", "Inner", 4),
				),
			),
		),
	)

	e := NewExtractor(CanonicalGrammar(), false)
	entities, rels := e.ExtractGraph(b.Tree(root), b.Source(), "u.pas")

	require.Len(t, entities, 2)
	assert.Equal(t, "u.pas:TOuter", entities[0].ID)
	assert.Equal(t, "u.pas:Inner", entities[1].ID)

	require.Len(t, rels, 1)
	assert.Equal(t, "u.pas:TOuter", rels[0].SourceID)
	assert.Equal(t, "u.pas:Inner", rels[0].TargetID)
}

func TestExtractGraph_UnknownKindsPassThrough(t *testing.T) {
	src := "type\n  TFoo = class\n    procedure Bar;\n  end;"
	b := syntax.NewBuilder(src)
	root := b.Root("root",
		b.Lines("declSection", 1, 4,
			b.Lines("class_type", 2, 4,
				b.Text("identifier", "TFoo", 2),
				b.Lines("visibility_block", 3, 3,
					b.Lines("procedure_declaration", 3, 3,
						b.Text("identifier", "Bar", 3),
					),
				),
			),
		),
	)

	entities, rels := NewExtractor(CanonicalGrammar(), false).ExtractGraph(b.Tree(root), b.Source(), "x.pas")
	require.Len(t, entities, 2)
	require.Len(t, rels, 1)
	assert.Equal(t, "x.pas:TFoo", rels[0].SourceID)
}

func TestExtractGraph_EmptyTree(t *testing.T) {
	e := NewExtractor(CanonicalGrammar(), false)

	entities, rels := e.ExtractGraph(nil, nil, "empty.pas")
	assert.Empty(t, entities)
	assert.Empty(t, rels)

	b := syntax.NewBuilder("")
	entities, rels = e.ExtractGraph(b.Tree(b.Root("root")), b.Source(), "empty.pas")
	assert.Empty(t, entities)
	assert.Empty(t, rels)
}

func TestExtractGraph_ExcerptTruncation(t *testing.T) {
	long := "procedure Foo; " + strings.Repeat("x", 150)
	b := syntax.NewBuilder(long)
	root := b.Root("root",
		b.At("procedure_declaration", 0, len(long),
			b.Text("identifier", "Foo", 1),
		),
	)
	entities, _ := NewExtractor(CanonicalGrammar(), false).ExtractGraph(b.Tree(root), b.Source(), "f.pas")
	require.Len(t, entities, 1)
	assert.Equal(t, long[:100]+"...", entities[0].Excerpt)
}

const pascalUnit = `unit Shapes;
interface
type
  TShape = class
    constructor Create;
    function Area: Double;
    property Name: string;
  end;
  IDrawable = interface
    procedure Draw;
  end;
  TAlias = Integer;
implementation
function TShape.Area: Double;
begin
end;
end.`

// pascalTree mirrors the node kinds produced by tree-sitter-pascal
func pascalTree() (*syntax.Builder, *syntax.MemTree) {
	b := syntax.NewBuilder(pascalUnit)
	root := b.Root("root",
		b.Lines("declType", 4, 8,
			b.Text("identifier", "TShape", 4),
			b.Lines("declClass", 4, 8,
				b.Text("kClass", "class", 4),
				b.Lines("declProc", 5, 5,
					b.Text("kConstructor", "constructor", 5),
					b.Text("identifier", "Create", 5),
				),
				b.Lines("declProc", 6, 6,
					b.Text("kFunction", "function", 6),
					b.Text("identifier", "Area", 6),
				),
				b.Lines("declProp", 7, 7,
					b.Text("kProperty", "property", 7),
					b.Text("identifier", "Name", 7),
				),
			),
		),
		b.Lines("declType", 9, 11,
			b.Text("identifier", "IDrawable", 9),
			b.Lines("declIntf", 9, 11,
				b.Lines("declProc", 10, 10,
					b.Text("kProcedure", "procedure", 10),
					b.Text("identifier", "Draw", 10),
				),
			),
		),
		b.Lines("declType", 12, 12,
			b.Text("identifier", "TAlias", 12),
			b.Text("identifier", "Integer", 12),
		),
		b.Lines("defProc", 14, 16,
			b.Lines("declProc", 14, 14,
				b.Text("kFunction", "function", 14),
				b.Text("genericDot", "TShape.Area", 14,
					b.Text("identifier", "TShape", 14),
					b.Text(".", ".", 14),
					b.Text("identifier", "Area", 14),
				),
			),
		),
	)
	return b, b.Tree(root)
}

func TestPascalGrammar_Graph(t *testing.T) {
	b, tree := pascalTree()
	entities, rels := NewExtractor(PascalGrammar(), false).ExtractGraph(tree, b.Source(), "Shapes.pas")

	got := make([]string, 0, len(entities))
	for _, e := range entities {
		got = append(got, string(e.Kind)+" "+e.Name)
	}
	assert.Equal(t, []string{
		"class TShape",
		"constructor Create",
		"method Area",
		"property Name",
		"interface IDrawable",
		"method Draw",
		"method Area",
	}, got)

	require.Len(t, rels, 4)
	assert.Equal(t, "Shapes.pas:TShape", rels[0].SourceID)
	assert.Equal(t, "Shapes.pas:Create", rels[0].TargetID)
	assert.Equal(t, "Shapes.pas:IDrawable", rels[3].SourceID)
	assert.Equal(t, "Shapes.pas:Draw", rels[3].TargetID)
}

func TestPascalGrammar_Flat(t *testing.T) {
	b, tree := pascalTree()
	items := NewExtractor(PascalGrammar(), false).ExtractFlat(tree, b.Source())

	require.Len(t, items, 6)
	assert.Equal(t, types.OutlineItem{Name: "TShape", Kind: types.KindClass, Line: 4, EndLine: 8, Excerpt: items[0].Excerpt}, items[0])
	assert.Equal(t, types.KindMethod, items[1].Kind, "constructors are reported as methods")
	assert.Equal(t, "Area", items[2].Name)
	assert.Equal(t, types.KindInterface, items[3].Kind)
	assert.Equal(t, "Draw", items[4].Name)
	assert.Equal(t, "Area", items[5].Name)
	assert.Equal(t, 14, items[5].Line)

	for _, item := range items {
		assert.NotEqual(t, types.KindProperty, item.Kind)
	}
}

func TestIdentifierKindIsTotal(t *testing.T) {
	g := CanonicalGrammar()
	g.IdentifierOverrides = map[DefinitionKind]string{DefProperty: "name"}

	assert.Equal(t, "", g.IdentifierKind(DefNone))
	assert.Equal(t, "name", g.IdentifierKind(DefProperty))
	for def := DefClassType; def <= DefTypeDecl; def++ {
		if def == DefProperty {
			continue
		}
		assert.Equal(t, "identifier", g.IdentifierKind(def))
	}
}

type fakeProvider struct {
	tree syntax.Tree
	err  error
}

func (f *fakeProvider) Parse(context.Context, []byte) (syntax.Tree, error) { return f.tree, f.err }
func (f *fakeProvider) Close()                                             {}

func TestParser_Parse(t *testing.T) {
	b, tree := classTree()
	p := New(&fakeProvider{tree: tree}, Config{Grammar: CanonicalGrammar(), Capability: CapabilityGraph})

	result, err := p.Parse(context.Background(), "test.pas", b.Source())
	require.NoError(t, err)
	assert.Len(t, result.Entities, 3)
	assert.Empty(t, result.Outline)
	assert.False(t, result.HasErrors())
}

func TestParser_ParseFailure(t *testing.T) {
	p := New(&fakeProvider{err: errors.New("boom")}, Config{})
	_, err := p.Parse(context.Background(), "bad.pas", []byte("unit X;"))
	assert.ErrorIs(t, err, types.ErrParseFailure)

	noProvider := New(nil, Config{})
	assert.False(t, noProvider.Available())
	_, err = noProvider.Parse(context.Background(), "bad.pas", []byte("unit X;"))
	assert.ErrorIs(t, err, types.ErrParseFailure)
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestParser_EmptySource(t *testing.T) {
	p := New(nil, Config{})
	result, err := p.Parse(context.Background(), "empty.pas", []byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
}

func TestParser_RecordsSyntaxErrors(t *testing.T) {
	src := "unit X;\n  garbage"
	b := syntax.NewBuilder(src)
	bad := b.Text("ERROR", "garbage", 2)
	bad.Error = true
	tree := b.Tree(b.Root("root", bad))

	p := New(&fakeProvider{tree: tree}, Config{Grammar: CanonicalGrammar()})
	result, err := p.Parse(context.Background(), "x.pas", b.Source())
	require.NoError(t, err)
	require.True(t, result.HasErrors())
	assert.Equal(t, 2, result.Errors[0].Line)
	assert.Equal(t, 3, result.Errors[0].Column)
}

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("flat")
	require.NoError(t, err)
	assert.Equal(t, CapabilityFlat, c)

	c, err = ParseCapability("")
	require.NoError(t, err)
	assert.Equal(t, CapabilityBoth, c)

	_, err = ParseCapability("tree")
	assert.Error(t, err)
}
