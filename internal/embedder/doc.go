// Package embedder turns chunk text into vector embeddings.
//
// Providers:
//   - openai: the OpenAI embeddings API or a compatible endpoint (go-openai)
//   - gemini: the Gemini API (google.golang.org/genai)
//   - jina: the Jina AI embeddings API
//   - local: feature-hashed bag-of-words vectors, offline
//
// Remote providers share one code path that validates input, serves repeated
// texts from an LRU cache keyed by model and content hash, throttles calls
// with a token bucket, sends misses in batches of DefaultBatchSize, and
// retries transient failures with exponential backoff. Client errors other
// than 429 fail immediately.
//
// # Basic Usage
//
//	emb, err := embedder.NewFromEnv(ctx)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: texts,
//	})
//
// # Provider Selection
//
//  1. DELPHIRAG_EMBEDDING_PROVIDER when set
//  2. else OPENAI_API_KEY, GOOGLE_API_KEY, JINA_API_KEY in that order
//  3. else local
//
// EMBEDDING_MODEL overrides the provider's default model, and
// OPENAI_EMBEDDING_API_BASE (or OPENAI_API_BASE) points the openai provider at
// another endpoint.
package embedder
