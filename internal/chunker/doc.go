// Package chunker divides Pascal/Delphi source into token-bounded chunks for
// embedding and retrieval.
//
// # Strategies
//
// Chunks follow the structure of the source whenever it is known:
//   - ByEntities: one chunk per definition, spanning a line range inferred
//     from the definition's anchor line
//   - Intelligent: routines by inferred range, classes up to their closing
//     "end;", section chunking when nothing matched
//   - Simple: short summaries of each routine and class (small files)
//   - BySection: line accumulation that prefers breaking at section keywords
//     (procedure, function, type, const, var, ...)
//   - WholeFile and Form: the entire .pas or .dfm text
//
// Any span above Config.MaxTokens is split into parts of at most MaxTokens
// tokens where consecutive parts share exactly Config.OverlapTokens tokens.
// Parts carry PartIndex and TotalParts.
//
// # Basic Usage
//
//	tok, _ := tokenizer.NewWithFallback("text-embedding-3-large")
//	c := chunker.New(tok, chunker.DefaultConfig())
//	chunks := c.BuildChunks(source, result.Entities)
//
//	for _, ch := range chunks {
//	    text, _ := ch.FormatForIngestion()
//	    fmt.Println(text)
//	}
//
// # Range Inference
//
// Without parser-provided end lines, a definition ends at the first line
// that reads "end;" or "end.", or just before the next unindented line,
// within Config.Lookahead lines (default 50). ScanBalanced counts
// begin/end depth instead; ScanExplicit trusts the parser's end lines.
//
// # Determinism
//
// Output depends only on the input text, the anchors and the configuration.
// Every chunk carries the SHA-256 hash of its content.
package chunker
