package embedder

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider       = "DELPHIRAG_EMBEDDING_PROVIDER"
	EnvModel          = "EMBEDDING_MODEL"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvOpenAIBase     = "OPENAI_API_BASE"
	EnvOpenAIEmbedURL = "OPENAI_EMBEDDING_API_BASE"
	EnvGeminiAPIKey   = "GOOGLE_API_KEY"
	EnvJinaAPIKey     = "JINA_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	CacheSize         int
	RequestsPerSecond float64
}

// ConfigFromEnv builds a Config from environment variables. The provider is
// the explicit choice if set, else the first provider with an API key, else
// local.
func ConfigFromEnv() Config {
	cfg := Config{
		Provider:  DetectProvider(),
		Model:     os.Getenv(EnvModel),
		CacheSize: DefaultCacheSize,
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		cfg.BaseURL = os.Getenv(EnvOpenAIEmbedURL)
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv(EnvOpenAIBase)
		}
	case ProviderGemini:
		cfg.APIKey = os.Getenv(EnvGeminiAPIKey)
	case ProviderJina:
		cfg.APIKey = os.Getenv(EnvJinaAPIKey)
	}
	return cfg
}

// NewFromEnv creates an embedder based on environment variables
func NewFromEnv(ctx context.Context) (Embedder, error) {
	return New(ctx, ConfigFromEnv())
}

// New creates an embedder with explicit configuration
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, cache)
	case ProviderGemini:
		return NewGeminiProvider(ctx, GeminiOptions{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, cache)
	case ProviderJina:
		return NewJinaProvider(JinaOptions{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, cache)
	case ProviderLocal, "":
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}

	switch {
	case os.Getenv(EnvOpenAIAPIKey) != "":
		return ProviderOpenAI
	case os.Getenv(EnvGeminiAPIKey) != "":
		return ProviderGemini
	case os.Getenv(EnvJinaAPIKey) != "":
		return ProviderJina
	}
	return ProviderLocal
}
