package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// EntityKind represents the type of Pascal/Delphi definition
type EntityKind string

const (
	KindClass       EntityKind = "class"
	KindInterface   EntityKind = "interface"
	KindFunction    EntityKind = "function"
	KindProcedure   EntityKind = "procedure"
	KindMethod      EntityKind = "method"
	KindProperty    EntityKind = "property"
	KindConstructor EntityKind = "constructor"
	KindDestructor  EntityKind = "destructor"
)

// AllEntityKinds lists every recognized kind in a stable order
var AllEntityKinds = []EntityKind{
	KindClass, KindInterface, KindFunction, KindProcedure,
	KindMethod, KindProperty, KindConstructor, KindDestructor,
}

// Valid reports whether k is one of the recognized kinds
func (k EntityKind) Valid() bool {
	switch k {
	case KindClass, KindInterface, KindFunction, KindProcedure,
		KindMethod, KindProperty, KindConstructor, KindDestructor:
		return true
	default:
		return false
	}
}

// IsContainer reports whether definitions of this kind hold members
func (k EntityKind) IsContainer() bool {
	return k == KindClass || k == KindInterface
}

// IsRoutine reports whether the kind denotes executable code
func (k EntityKind) IsRoutine() bool {
	switch k {
	case KindFunction, KindProcedure, KindMethod, KindConstructor, KindDestructor:
		return true
	default:
		return false
	}
}

// ParseEntityKind converts a string into an EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntityKind, s)
	}
	return k, nil
}

// Excerpt limits applied to Entity.Excerpt
const (
	RoutineExcerptLimit   = 100
	ContainerExcerptLimit = 200
)

// Entity is a named structural definition extracted from a syntax tree.
// Entities are immutable once created.
type Entity struct {
	// Identification
	ID   string // fileLabel + ":" + name
	Kind EntityKind
	Name string

	// Location (1-based lines)
	SourceFile string
	SourceLine int
	EndLine    int

	// Content
	Description string
	Excerpt     string
	SourceID    string // provenance tag, "file:<label>_line:<row>"
}

// EntityID builds the identifier of a definition named name in fileLabel
func EntityID(fileLabel, name string) string {
	return fileLabel + ":" + name
}

// SourceTag builds a provenance tag from a file label and a 0-based row
func SourceTag(fileLabel string, row int) string {
	return fmt.Sprintf("file:%s_line:%d", fileLabel, row)
}

// DescribeEntity renders the human readable entity description
func DescribeEntity(kind EntityKind, name, fileLabel string) string {
	return fmt.Sprintf("%s named %s in %s", kind, name, fileLabel)
}

// Truncate shortens text to limit runes, appending "..." when it was cut
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "..."
}

// ExcerptLimit returns the excerpt length used for a kind
func ExcerptLimit(kind EntityKind) int {
	if kind.IsContainer() {
		return ContainerExcerptLimit
	}
	return RoutineExcerptLimit
}

// Validate performs validation of the entity
func (e *Entity) Validate() error {
	if e.Name == "" {
		return ErrEmptyEntityName
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntityKind, e.Kind)
	}
	if e.SourceLine <= 0 {
		return ErrInvalidLine
	}
	if e.EndLine != 0 && e.EndLine < e.SourceLine {
		return ErrInvalidLine
	}
	return nil
}

// Relationship links a container definition to a member definition
type Relationship struct {
	SourceID       string // parent entity id
	TargetID       string // child entity id
	Description    string
	Keywords       string
	Weight         float64
	SourceLocation string
}

// DefaultRelationshipWeight is the weight of a membership edge
const DefaultRelationshipWeight = 1.0

// MemberOf builds the membership relationship between parentID and child
func MemberOf(parentID string, child Entity) Relationship {
	return Relationship{
		SourceID:       parentID,
		TargetID:       child.ID,
		Description:    fmt.Sprintf("%s is a member of %s", child.Name, parentID),
		Keywords:       parentID + " " + child.Name,
		Weight:         DefaultRelationshipWeight,
		SourceLocation: child.SourceID,
	}
}

// OutlineItem is a flat definition record without nesting context
type OutlineItem struct {
	Name    string
	Kind    EntityKind
	Line    int // 1-based
	EndLine int // 1-based, 0 when unknown
	Excerpt string
}
