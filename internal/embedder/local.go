package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalProvider computes feature-hashed bag-of-words vectors without any
// network access. Texts sharing identifiers land near each other, which is
// enough for offline indexing and tests.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ContentHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(DefaultLocalModel, hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashedVector(req.Text),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     DefaultLocalModel,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Put(DefaultLocalModel, hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      DefaultLocalModel,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashedVector buckets lowercased words by FNV hash, with the hash's top bit
// choosing the sign, and normalizes the result
func hashedVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vector[sum%LocalDimension] += sign
	}
	return NormalizeVector(vector)
}
