package types

// ParseResult represents the output of analyzing a Pascal/Delphi source file
type ParseResult struct {
	// Graph extraction
	Entities      []Entity
	Relationships []Relationship

	// Flat extraction
	Outline []OutlineItem

	// Errors encountered during parsing (non-fatal)
	Errors []ParseError
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}

// Routines returns the outline items that denote executable code
func (pr *ParseResult) Routines() []OutlineItem {
	var out []OutlineItem
	for _, item := range pr.Outline {
		if item.Kind.IsRoutine() {
			out = append(out, item)
		}
	}
	return out
}

// Containers returns the outline items that denote classes and interfaces
func (pr *ParseResult) Containers() []OutlineItem {
	var out []OutlineItem
	for _, item := range pr.Outline {
		if item.Kind.IsContainer() {
			out = append(out, item)
		}
	}
	return out
}
