package embedder

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Provider names and defaults
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderJina   = "jina"
	ProviderLocal  = "local"

	DefaultOpenAIModel = "text-embedding-3-large"
	DefaultGeminiModel = "text-embedding-004"
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultLocalModel  = "local-hash-384"

	JinaDimension  = 1024
	LocalDimension = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// DefaultRequestsPerSecond throttles remote providers
	DefaultRequestsPerSecond = 5.0
)

// modelDimensions lists the native dimension of known models
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"text-embedding-004":     768,
	"gemini-embedding-001":   3072,
	"jina-embeddings-v3":     JinaDimension,
	DefaultLocalModel:        LocalDimension,
}

// DimensionForModel returns the native dimension of model, 0 when unknown
func DimensionForModel(model string) int {
	return modelDimensions[model]
}

// embedFunc calls a provider API for texts and returns one vector per text
type embedFunc func(ctx context.Context, texts []string, model string) ([][]float32, error)

// remote implements the Embedder contract shared by API-backed providers:
// validation, cache lookups, rate limiting, batching and retry
type remote struct {
	name      string
	model     string
	dimension int
	cache     *Cache
	limiter   *rate.Limiter
	retry     RetryConfig
	call      embedFunc
}

func newRemote(name, model string, dimension int, cache *Cache, rps float64, call embedFunc) *remote {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &remote{
		name:      name,
		model:     model,
		dimension: dimension,
		cache:     cache,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		retry:     DefaultRetryConfig(),
		call:      call,
	}
}

func (r *remote) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := r.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch serves cached texts directly and sends the rest to the API in
// batches of at most DefaultBatchSize texts
func (r *remote) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = r.model
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		hash := ContentHash(text)
		if r.cache != nil {
			if emb, ok := r.cache.Get(model, hash); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(missing))
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = req.Texts[idx]
		}

		vectors, err := retryWithBackoff(ctx, r.retry, func() ([][]float32, error) {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			return r.call(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, r.name, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("%w: %s returned %d embeddings for %d texts", ErrProviderFailed, r.name, len(vectors), len(texts))
		}

		for j, idx := range batch {
			hash := ContentHash(req.Texts[idx])
			emb := &Embedding{
				Vector:    vectors[j],
				Dimension: len(vectors[j]),
				Provider:  r.name,
				Model:     model,
				Hash:      hash,
			}
			if r.cache != nil {
				r.cache.Put(model, hash, emb)
			}
			embeddings[idx] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   r.name,
		Model:      model,
	}, nil
}

func (r *remote) Dimension() int {
	return r.dimension
}

func (r *remote) Provider() string {
	return r.name
}

func (r *remote) Model() string {
	return r.model
}

func (r *remote) Close() error {
	return nil
}

// retryable reports whether an HTTP status is worth another attempt
func retryable(status int) bool {
	return status == 429 || status >= 500
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

// requestTimeout bounds one API round trip
const requestTimeout = 60 * time.Second
