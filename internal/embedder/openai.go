package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds text with the OpenAI embeddings API or any
// compatible endpoint
type OpenAIProvider struct {
	*remote
	client     *openai.Client
	dimensions int
}

// OpenAIOptions configures an OpenAIProvider
type OpenAIOptions struct {
	APIKey            string
	BaseURL           string // empty uses the public API
	Model             string
	Dimensions        int // 0 requests the model's native dimension
	RequestsPerSecond float64
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(opts OpenAIOptions, cache *Cache) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key required", ErrMissingAPIKey)
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: requestTimeout}

	p := &OpenAIProvider{
		client:     openai.NewClientWithConfig(config),
		dimensions: opts.Dimensions,
	}

	dim := opts.Dimensions
	if dim == 0 {
		dim = DimensionForModel(opts.Model)
	}
	p.remote = newRemote(ProviderOpenAI, opts.Model, dim, cache, opts.RequestsPerSecond, p.embed)
	return p, nil
}

func (p *OpenAIProvider) embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(model),
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// classifyOpenAIError marks client errors other than rate limiting as permanent
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 && !retryable(apiErr.HTTPStatusCode) {
		return permanent(err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 && !retryable(reqErr.HTTPStatusCode) {
		return permanent(err)
	}
	return err
}
