package parser

import (
	"github.com/dshills/delphirag/internal/syntax"
	"github.com/dshills/delphirag/pkg/types"
)

// DefinitionKind enumerates the node shapes the extractor recognizes
type DefinitionKind uint8

const (
	DefNone DefinitionKind = iota
	DefClassType
	DefInterfaceType
	DefFunction
	DefProcedure
	DefMethod
	DefProperty
	DefConstructor
	DefDestructor

	// DefRoutine takes its entity kind from a keyword child (kFunction, kProcedure, ...)
	DefRoutine

	// DefTypeDecl is a definition only when its body child is a class or interface
	DefTypeDecl
)

// Grammar maps the node kinds of one tree-sitter grammar onto definitions
type Grammar struct {
	Name string

	// Definitions maps node kind to definition kind
	Definitions map[string]DefinitionKind

	// Identifier is the child kind holding a definition's name
	Identifier string

	// IdentifierOverrides replaces Identifier for specific definitions
	IdentifierOverrides map[DefinitionKind]string

	// Qualifiers are wrapper kinds around dotted names (TFoo.Bar)
	Qualifiers map[string]bool

	// RoutineKeywords resolves DefRoutine nodes
	RoutineKeywords map[string]types.EntityKind

	// TypeBodies resolves DefTypeDecl nodes
	TypeBodies map[string]types.EntityKind

	// PromoteMembers turns functions and procedures declared inside a class,
	// or named through a qualifier, into methods
	PromoteMembers bool
}

// IdentifierKind returns the child kind holding the name of a definition.
// It returns "" for DefNone.
func (g *Grammar) IdentifierKind(def DefinitionKind) string {
	switch def {
	case DefNone:
		return ""
	default:
		if kind, ok := g.IdentifierOverrides[def]; ok {
			return kind
		}
		return g.Identifier
	}
}

// Definition returns the definition kind of a node kind
func (g *Grammar) Definition(nodeKind string) DefinitionKind {
	return g.Definitions[nodeKind]
}

// entityKind resolves the entity kind of a recognized node.
// ok is false when the node turns out not to be a definition.
func (g *Grammar) entityKind(def DefinitionKind, n syntax.Node) (types.EntityKind, bool) {
	switch def {
	case DefClassType:
		return types.KindClass, true
	case DefInterfaceType:
		return types.KindInterface, true
	case DefFunction:
		return types.KindFunction, true
	case DefProcedure:
		return types.KindProcedure, true
	case DefMethod:
		return types.KindMethod, true
	case DefProperty:
		return types.KindProperty, true
	case DefConstructor:
		return types.KindConstructor, true
	case DefDestructor:
		return types.KindDestructor, true
	case DefRoutine:
		for _, c := range syntax.Children(n) {
			if kind, ok := g.RoutineKeywords[c.Kind()]; ok {
				return kind, true
			}
		}
		return "", false
	case DefTypeDecl:
		for _, c := range syntax.Children(n) {
			if kind, ok := g.TypeBodies[c.Kind()]; ok {
				return kind, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// CanonicalGrammar uses descriptive node kinds such as class_type and
// procedure_declaration
func CanonicalGrammar() *Grammar {
	return &Grammar{
		Name: "canonical",
		Definitions: map[string]DefinitionKind{
			"class_type":              DefClassType,
			"interface_type":          DefInterfaceType,
			"function_declaration":    DefFunction,
			"procedure_declaration":   DefProcedure,
			"method_declaration":      DefMethod,
			"property_declaration":    DefProperty,
			"constructor_declaration": DefConstructor,
			"destructor_declaration":  DefDestructor,
		},
		Identifier: "identifier",
		Qualifiers: map[string]bool{
			"qualified_identifier": true,
			"genericDot":           true,
		},
	}
}

// PascalGrammar matches the node kinds of the tree-sitter-pascal grammar
func PascalGrammar() *Grammar {
	return &Grammar{
		Name: "pascal",
		Definitions: map[string]DefinitionKind{
			"declType": DefTypeDecl,
			"declProc": DefRoutine,
			"declProp": DefProperty,
		},
		Identifier: "identifier",
		Qualifiers: map[string]bool{
			"genericDot": true,
		},
		RoutineKeywords: map[string]types.EntityKind{
			"kFunction":    types.KindFunction,
			"kProcedure":   types.KindProcedure,
			"kConstructor": types.KindConstructor,
			"kDestructor":  types.KindDestructor,
		},
		TypeBodies: map[string]types.EntityKind{
			"declClass": types.KindClass,
			"declIntf":  types.KindInterface,
		},
		PromoteMembers: true,
	}
}

// GrammarByName returns a built-in grammar table
func GrammarByName(name string) (*Grammar, bool) {
	switch name {
	case "pascal", "":
		return PascalGrammar(), true
	case "canonical":
		return CanonicalGrammar(), true
	default:
		return nil, false
	}
}
