package parser

import (
	"fmt"
	"strings"

	"github.com/dshills/delphirag/internal/syntax"
	"github.com/dshills/delphirag/pkg/types"
)

// Extractor walks syntax trees and collects definitions
type Extractor struct {
	grammar      *Grammar
	disambiguate bool
}

// NewExtractor returns an Extractor for grammar g
func NewExtractor(g *Grammar, disambiguate bool) *Extractor {
	if g == nil {
		g = PascalGrammar()
	}
	return &Extractor{grammar: g, disambiguate: disambiguate}
}

// Grammar returns the grammar table in use
func (e *Extractor) Grammar() *Grammar {
	return e.grammar
}

// frame is one pending node on the traversal stack together with the
// entity it is nested in
type frame struct {
	node       syntax.Node
	parentID   string
	parentKind types.EntityKind
}

// ExtractGraph returns every named definition in tree along with a
// parent-to-child relationship for each definition nested in another.
//
// The walk is a depth-first pre-order traversal driven by an explicit
// stack. Definitions without a name contribute nothing, and their children
// stay attached to the enclosing named definition.
func (e *Extractor) ExtractGraph(tree syntax.Tree, src []byte, fileLabel string) ([]types.Entity, []types.Relationship) {
	if syntax.IsEmpty(tree) {
		return nil, nil
	}

	var (
		entities      []types.Entity
		relationships []types.Relationship
		seen          = make(map[string]int)
	)

	stack := []frame{{node: tree.Root()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		parentID, parentKind := f.parentID, f.parentKind

		if entity, ok := e.recognize(f.node, src, fileLabel, parentKind); ok {
			seen[entity.ID]++
			if e.disambiguate && seen[entity.ID] > 1 {
				entity.ID = fmt.Sprintf("%s@L%d", entity.ID, entity.SourceLine)
			}
			entities = append(entities, entity)
			if parentID != "" {
				relationships = append(relationships, types.MemberOf(parentID, entity))
			}
			parentID, parentKind = entity.ID, entity.Kind
		}

		stack = pushChildren(stack, f.node, parentID, parentKind)
	}

	return entities, relationships
}

// ExtractFlat lists classes, interfaces and routines in document order
// without nesting context. Properties are not reported; constructors,
// destructors and qualified routines are reported as methods.
func (e *Extractor) ExtractFlat(tree syntax.Tree, src []byte) []types.OutlineItem {
	if syntax.IsEmpty(tree) {
		return nil
	}

	var items []types.OutlineItem
	stack := []frame{{node: tree.Root()}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if entity, ok := e.recognize(f.node, src, "", ""); ok {
			kind := flatKind(entity.Kind)
			if kind != "" {
				items = append(items, types.OutlineItem{
					Name:    entity.Name,
					Kind:    kind,
					Line:    entity.SourceLine,
					EndLine: entity.EndLine,
					Excerpt: entity.Excerpt,
				})
			}
		}

		stack = pushChildren(stack, f.node, "", "")
	}
	return items
}

func flatKind(kind types.EntityKind) types.EntityKind {
	switch kind {
	case types.KindClass, types.KindInterface, types.KindFunction, types.KindProcedure, types.KindMethod:
		return kind
	case types.KindConstructor, types.KindDestructor:
		return types.KindMethod
	default:
		return ""
	}
}

// pushChildren pushes the children of n in reverse so they pop in source order
func pushChildren(stack []frame, n syntax.Node, parentID string, parentKind types.EntityKind) []frame {
	for i := n.ChildCount() - 1; i >= 0; i-- {
		if c := n.Child(i); c != nil {
			stack = append(stack, frame{node: c, parentID: parentID, parentKind: parentKind})
		}
	}
	return stack
}

// recognize builds the entity for n when n is a named definition
func (e *Extractor) recognize(n syntax.Node, src []byte, fileLabel string, parentKind types.EntityKind) (types.Entity, bool) {
	def := e.grammar.Definition(n.Kind())
	if def == DefNone {
		return types.Entity{}, false
	}
	kind, ok := e.grammar.entityKind(def, n)
	if !ok {
		return types.Entity{}, false
	}
	name, qualified := e.name(def, n, src)
	if name == "" {
		return types.Entity{}, false
	}

	if e.grammar.PromoteMembers && (kind == types.KindFunction || kind == types.KindProcedure) &&
		(qualified || parentKind.IsContainer()) {
		kind = types.KindMethod
	}

	row := n.StartPoint().Row
	return types.Entity{
		ID:          types.EntityID(fileLabel, name),
		Kind:        kind,
		Name:        name,
		SourceFile:  fileLabel,
		SourceLine:  row + 1,
		EndLine:     n.EndPoint().Row + 1,
		Description: types.DescribeEntity(kind, name, fileLabel),
		Excerpt:     types.Truncate(syntax.Text(n, src), types.ExcerptLimit(kind)),
		SourceID:    types.SourceTag(fileLabel, row),
	}, true
}

// name returns the first identifier child of n. A qualifier child that comes
// first yields its last segment and reports qualified.
func (e *Extractor) name(def DefinitionKind, n syntax.Node, src []byte) (string, bool) {
	ident := e.grammar.IdentifierKind(def)
	for _, c := range syntax.Children(n) {
		switch {
		case c.Kind() == ident:
			if name := strings.TrimSpace(syntax.Text(c, src)); name != "" {
				return name, false
			}
		case e.grammar.Qualifiers[c.Kind()]:
			if name := e.lastSegment(c, ident, src); name != "" {
				return name, true
			}
		}
	}
	return "", false
}

func (e *Extractor) lastSegment(n syntax.Node, ident string, src []byte) string {
	children := syntax.Children(n)
	for i := len(children) - 1; i >= 0; i-- {
		c := children[i]
		switch {
		case c.Kind() == ident:
			return strings.TrimSpace(syntax.Text(c, src))
		case e.grammar.Qualifiers[c.Kind()]:
			if name := e.lastSegment(c, ident, src); name != "" {
				return name
			}
		}
	}
	return ""
}
