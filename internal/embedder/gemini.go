package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider embeds text with the Gemini API
type GeminiProvider struct {
	*remote
	client     *genai.Client
	dimensions int32
}

// GeminiOptions configures a GeminiProvider
type GeminiOptions struct {
	APIKey            string
	Model             string
	Dimensions        int
	RequestsPerSecond float64
}

// NewGeminiProvider creates a Gemini embedder
func NewGeminiProvider(ctx context.Context, opts GeminiOptions, cache *Cache) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key required", ErrMissingAPIKey)
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p := &GeminiProvider{client: client, dimensions: int32(opts.Dimensions)}
	dim := opts.Dimensions
	if dim == 0 {
		dim = DimensionForModel(opts.Model)
	}
	p.remote = newRemote(ProviderGemini, opts.Model, dim, cache, opts.RequestsPerSecond, p.embed)
	return p, nil
}

func (p *GeminiProvider) embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var config *genai.EmbedContentConfig
	if p.dimensions > 0 {
		dims := p.dimensions
		config = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	resp, err := p.client.Models.EmbedContent(ctx, model, contents, config)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
