package searcher

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/storage"
	"github.com/dshills/delphirag/pkg/types"
)

// SearchMode selects the retrieval strategy
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // vector and BM25 fused by RRF
	SearchModeVector  SearchMode = "vector"  // cosine similarity only
	SearchModeKeyword SearchMode = "keyword" // FTS5 BM25 only
)

// Request limits and defaults
const (
	DefaultLimit       = 10
	MaxLimit           = 100
	DefaultRRFConstant = 60
	DefaultCacheTTL    = time.Hour
	DefaultCacheSize   = 1000
)

// ErrEmptyQuery is returned for a blank query
var ErrEmptyQuery = errors.New("query cannot be empty")

// SearchRequest describes one search
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	Filters     *storage.SearchFilters
	ProjectID   int64
	UseCache    bool
	CacheTTL    time.Duration
	RRFConstant float64 // k for Reciprocal Rank Fusion
}

// SearchResponse holds ranked results and how they were found
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher retrieves indexed chunks by meaning, by keyword, or both
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *lru.Cache[string, cacheEntry]
	now      func() time.Time
}

// NewSearcher creates a Searcher. A nil embedder restricts hybrid search to
// keywords and makes vector search fail.
func NewSearcher(store storage.Storage, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[string, cacheEntry](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{storage: store, embedder: emb, cache: cache, now: time.Now}
}

// Search runs req and returns at most req.Limit results, best first
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	started := s.now()

	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey(req)
	if req.UseCache {
		if entry, ok := s.cache.Get(key); ok {
			if s.now().Before(entry.expiresAt) {
				resp := cloneResponse(entry.response)
				resp.CacheHit = true
				resp.Duration = s.now().Sub(started)
				return resp, nil
			}
			s.cache.Remove(key)
		}
	}

	// without an embedder hybrid degrades to keyword search
	mode := req.Mode
	if mode == SearchModeHybrid && s.embedder == nil {
		mode = SearchModeKeyword
	}

	var (
		resp *SearchResponse
		err  error
	)
	switch mode {
	case SearchModeHybrid:
		resp, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		resp, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		resp, err = s.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}
	resp.SearchMode = mode
	resp.Duration = s.now().Sub(started)

	if req.UseCache && len(resp.Results) > 0 {
		s.cache.Add(key, cacheEntry{
			response:  cloneResponse(resp),
			expiresAt: s.now().Add(req.CacheTTL),
		})
	}
	return resp, nil
}

func (s *Searcher) searchVector(ctx context.Context, req SearchRequest, limit int) ([]storage.VectorResult, error) {
	if s.embedder == nil {
		return nil, errors.New("no embedder configured for vector search")
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.storage.SearchVector(ctx, req.ProjectID, emb.Vector, limit, req.Filters)
}

// hybridSearch runs both searches at once and fuses their rankings. It fails
// only when both sides fail.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var (
		wg      sync.WaitGroup
		text    []storage.TextResult
		textErr error
	)
	wg.Go(func() {
		text, textErr = s.storage.SearchText(ctx, req.ProjectID, req.Query, req.Limit*2, req.Filters)
	})
	vector, vectorErr := s.searchVector(ctx, req, req.Limit*2)
	wg.Wait()

	if vectorErr != nil && textErr != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%w", vectorErr, textErr)
	}

	results, err := s.fetchResults(ctx, applyRRF(vector, text, req.RRFConstant), req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vector),
		TextResults:   len(text),
	}, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vector, err := s.searchVector(ctx, req, req.Limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(vector))
	for i, v := range vector {
		ranked[i] = rankedResult{chunkID: v.ChunkID, score: clamp01(v.SimilarityScore), rank: i + 1}
	}
	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Results: results, TotalResults: len(results), VectorResults: len(vector)}, nil
}

func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	text, err := s.storage.SearchText(ctx, req.ProjectID, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(text))
	for i, t := range text {
		ranked[i] = rankedResult{chunkID: t.ChunkID, score: clamp01(t.BM25Score), rank: i + 1}
	}
	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Results: results, TotalResults: len(results), TextResults: len(text)}, nil
}

type rankedResult struct {
	chunkID int64
	score   float64
	rank    int
}

// applyRRF fuses rankings: RRF(d) = sum over lists of 1/(k + rank(d)).
// Scores are divided by the best possible score, 2/(k+1), to land in [0, 1].
func applyRRF(vector []storage.VectorResult, text []storage.TextResult, k float64) []rankedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[int64]float64, len(vector)+len(text))
	for i, v := range vector {
		scores[v.ChunkID] += 1 / (k + float64(i+1))
	}
	for i, t := range text {
		scores[t.ChunkID] += 1 / (k + float64(i+1))
	}

	best := 2 / (k + 1)
	ranked := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, rankedResult{chunkID: id, score: score / best})
	}
	slices.SortFunc(ranked, func(a, b rankedResult) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.chunkID, b.chunkID)
	})
	for i := range ranked {
		ranked[i].rank = i + 1
	}
	return ranked
}

// fetchResults loads chunk and file data for the top ranked results. Chunks
// deleted since ranking are skipped.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0, min(limit, len(ranked)))

	for _, rr := range ranked {
		if len(results) == limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk, err := s.storage.GetChunk(ctx, rr.chunkID)
		if err != nil {
			continue
		}
		file, err := s.storage.GetFileByID(ctx, chunk.FileID)
		if err != nil {
			continue
		}

		results = append(results, types.SearchResult{
			ChunkID:        rr.chunkID,
			Rank:           len(results) + 1,
			RelevanceScore: rr.score,
			ChunkType:      types.ChunkType(chunk.ChunkType),
			EntityName:     chunk.EntityName,
			EntityKind:     types.EntityKind(chunk.EntityKind),
			File:           &types.FileInfo{Path: file.FilePath, StartLine: chunk.StartLine, EndLine: chunk.EndLine},
			Content:        chunk.Content,
		})
	}
	return results, nil
}

// validateRequest applies defaults and bounds to req
func validateRequest(req *SearchRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	req.Limit = min(req.Limit, MaxLimit)
	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}
	if req.RRFConstant == 0 {
		req.RRFConstant = DefaultRRFConstant
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = DefaultCacheTTL
	}
	return nil
}

// cacheKey identifies a request by every field that affects its results
func cacheKey(req SearchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\x00%s\x00%s\x00%d\x00%g", req.ProjectID, req.Mode, req.Query, req.Limit, req.RRFConstant)
	if f := req.Filters; f != nil {
		fmt.Fprintf(&b, "\x00%q\x00%q\x00%q\x00%s\x00%g",
			f.ChunkTypes, f.EntityKinds, f.FileTypes, f.FilePattern, f.MinRelevance)
	}
	return b.String()
}

func cloneResponse(src *SearchResponse) *SearchResponse {
	dst := *src
	dst.Results = slices.Clone(src.Results)
	for i := range dst.Results {
		if f := dst.Results[i].File; f != nil {
			cp := *f
			dst.Results[i].File = &cp
		}
	}
	return &dst
}

func clamp01(v float64) float64 {
	return max(0, min(v, 1))
}

// InvalidateCache drops every cached response. Called after reindexing.
func (s *Searcher) InvalidateCache() {
	s.cache.Purge()
}

// CacheLen reports the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}
