// Package searcher retrieves indexed chunks for a query.
//
// Three modes are available:
//   - Hybrid (default): vector similarity and BM25 keyword search run
//     concurrently and their rankings are fused with Reciprocal Rank Fusion
//   - Vector: similarity between the query embedding and chunk embeddings
//   - Keyword: BM25 over chunk content and entity names
//
// Results can be narrowed by chunk type, entity kind, file type and file
// glob through storage.SearchFilters.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    ProjectID: project.ID,
//	    Query:     "load customer from dataset",
//	    Limit:     10,
//	    Filters:   &storage.SearchFilters{EntityKinds: []string{"procedure"}},
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s %s:%d (%.2f)\n",
//	        r.Rank, r.EntityName, r.File.Path, r.File.StartLine, r.RelevanceScore)
//	}
//
// # Reciprocal Rank Fusion
//
// Each chunk scores the sum of 1/(k + rank) over the rankings it appears in,
// with k = 60 by default. Scores are normalized by the best achievable score
// so RelevanceScore stays within [0, 1] in every mode.
//
// # Caching
//
// With UseCache set, responses are kept in an LRU cache of 1000 entries for
// CacheTTL (one hour by default), keyed by query, mode, project, limit and
// filters. InvalidateCache clears it after reindexing.
package searcher
