// Package parser extracts structural entities from Pascal/Delphi syntax trees.
//
// A Grammar table maps the node kinds of a tree-sitter grammar onto a closed
// set of definition kinds. The Extractor walks a tree depth-first and offers
// two views of the same definitions:
//
//   - ExtractGraph: entities with file-scoped ids plus a membership
//     relationship for every definition nested inside another
//   - ExtractFlat: a flat outline of classes, interfaces and routines
//
// # Basic Usage
//
//	p := parser.New(provider, parser.Config{Grammar: parser.PascalGrammar()})
//	result, err := p.Parse(ctx, "Unit1.pas", src)
//	if errors.Is(err, types.ErrParseFailure) {
//	    // fall back to text chunking
//	}
//
//	for _, e := range result.Entities {
//	    fmt.Println(e.ID, e.Kind, e.SourceLine)
//	}
//
// # Entity Identity
//
// Entity ids are "<file>:<name>". Overloaded routines share an id unless the
// parser is configured with Disambiguate, which suffixes repeats with the
// line number ("Unit1.pas:Add@L42").
//
// Qualified implementation names resolve to their last segment, so
// "procedure TFoo.Bar;" yields an entity named Bar.
package parser
