package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrProviderFailed  = errors.New("embedding provider failed")
	ErrUnknownProvider = errors.New("unknown embedding provider")
	ErrMissingAPIKey   = errors.New("embedding provider requires an API key")
)

// Embedding is one vector and where it came from. Hash is the content hash
// of the embedded text.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string
}

// EmbeddingRequest asks for the vector of one text. Model overrides the
// provider's default when set.
type EmbeddingRequest struct {
	Text  string
	Model string
}

// Validate rejects an empty text
func (r EmbeddingRequest) Validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// BatchEmbeddingRequest asks for the vectors of several texts
type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// Validate rejects an empty batch or any empty text in it
func (r BatchEmbeddingRequest) Validate() error {
	if len(r.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range r.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// BatchEmbeddingResponse holds one embedding per requested text, in order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder generates embeddings for chunk text
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch returns embeddings in input order
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// DefaultCacheSize is the number of embeddings cached when no size is given
const DefaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by model and content hash, so
// switching models never serves a vector of the wrong space.
type Cache struct {
	lru *lru.Cache[string, *Embedding]
}

// NewCache creates a cache holding at most size embeddings
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, *Embedding](size)
	if err != nil {
		c, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{lru: c}
}

// Get returns a private copy of the embedding of hash under model
func (c *Cache) Get(model, hash string) (*Embedding, bool) {
	emb, ok := c.lru.Get(model + ":" + hash)
	if !ok {
		return nil, false
	}
	return clone(emb), true
}

// Put stores a copy of emb under model and hash
func (c *Cache) Put(model, hash string, emb *Embedding) {
	c.lru.Add(model+":"+hash, clone(emb))
}

// Len returns the number of cached embeddings
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache
func (c *Cache) Purge() {
	c.lru.Purge()
}

func clone(emb *Embedding) *Embedding {
	cp := *emb
	cp.Vector = append([]float32(nil), emb.Vector...)
	return &cp
}

// ContentHash returns the hex SHA-256 of text
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
