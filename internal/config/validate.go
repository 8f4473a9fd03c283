package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dshills/delphirag/internal/embedder"
	"github.com/dshills/delphirag/internal/rag"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Database.Path == "" {
		add("database.path is required")
	}

	if _, err := c.ParserConfig(); err != nil {
		add("parser: %v", err)
	}

	if err := c.ChunkerConfig().Validate(); err != nil {
		add("chunking: %v", err)
	}
	if c.Chunking.MaxTokens <= 0 {
		add("chunking.max_tokens must be positive, got %d", c.Chunking.MaxTokens)
	} else if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		add("chunking.overlap_tokens must be in [0, %d), got %d", c.Chunking.MaxTokens, c.Chunking.OverlapTokens)
	}

	if c.Indexer.Workers < 0 {
		add("indexer.workers must not be negative, got %d", c.Indexer.Workers)
	}
	if c.Indexer.BatchSize < 0 {
		add("indexer.batch_size must not be negative, got %d", c.Indexer.BatchSize)
	}

	switch provider := strings.ToLower(c.Embedding.Provider); provider {
	case "", embedder.ProviderLocal, embedder.ProviderJina:
	case embedder.ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			add("embedding: OPENAI_API_KEY is required for the openai provider")
		}
	case embedder.ProviderGemini:
		if c.Embedding.GoogleAPIKey == "" {
			add("embedding: GOOGLE_API_KEY is required for the gemini provider")
		}
	default:
		add("embedding.provider %q is not one of openai, gemini, jina, local", provider)
	}
	if c.Embedding.Dimensions < 0 {
		add("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BaseURL != "" {
		if err := checkURL(c.Embedding.BaseURL); err != nil {
			add("embedding.base_url: %v", err)
		}
	}

	if err := rag.ValidateMode(c.LightRAG.Mode); err != nil {
		add("lightrag.mode: %v", err)
	}
	if c.LightRAG.Enabled {
		if err := checkURL(c.LightRAG.URL); err != nil {
			add("lightrag.url: %v", err)
		}
	}
	if c.LightRAG.ChunkOverlap >= c.LightRAG.ChunkSize && c.LightRAG.ChunkSize > 0 {
		add("lightrag.chunk_overlap must be smaller than chunk_size")
	}

	if c.Neo4j.Enabled && c.Neo4j.URI == "" {
		add("neo4j.uri is required when neo4j is enabled")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %v", err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		add("log.format %q is not one of text, json", c.Log.Format)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
