// Package indexer runs the ingestion pipeline over a Delphi source tree.
//
// # Basic Usage
//
//	idx := indexer.New(indexer.Options{
//	    Parser:   p,
//	    Storage:  store,
//	    Sink:     lightrag,
//	    Embedder: emb,
//	})
//
//	stats, err := idx.IndexProject(ctx, "/path/to/project", indexer.DefaultConfig())
//	fmt.Printf("processed %d files in %v\n", stats.Processed, stats.Duration)
//
// # Pipeline
//
//  1. Discover .pas and .dfm files, skipping hidden and tool directories
//  2. Classify each file: encoding, size category, auto-generated markers
//  3. Skip files whose content hash matches the stored copy
//  4. Parse and chunk files concurrently; parse failures fall back to text
//     chunking so no content is dropped
//  5. Store each batch in one transaction
//  6. Hand each file's knowledge graph to the RAG sink
//  7. Remove files that disappeared from disk, then embed new chunks
//
// A failing file is counted in Statistics and never stops the run.
//
// # Resume
//
// A file counts as unchanged when its stored hash matches, the sink (if
// any) accepted its current content, and, with a progress store, the store
// recorded it. Files whose delivery failed are retried by the next run.
// Config.Reset clears the store and reprocesses every file.
//
// # Concurrency
//
// One run per Indexer at a time; a second call returns
// ErrIndexingInProgress. Watch debounces file system events and reuses
// IndexProject.
package indexer
