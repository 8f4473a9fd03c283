package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultJinaBaseURL is the public Jina AI API
const DefaultJinaBaseURL = "https://api.jina.ai/v1"

// JinaProvider embeds text with the Jina AI embeddings API
type JinaProvider struct {
	*remote
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// JinaOptions configures a JinaProvider
type JinaOptions struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
}

// NewJinaProvider creates a Jina embedder
func NewJinaProvider(opts JinaOptions, cache *Cache) (*JinaProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: Jina API key required", ErrMissingAPIKey)
	}
	if opts.Model == "" {
		opts.Model = DefaultJinaModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultJinaBaseURL
	}

	p := &JinaProvider{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	p.remote = newRemote(ProviderJina, opts.Model, JinaDimension, cache, opts.RequestsPerSecond, p.embed)
	return p, nil
}

func (p *JinaProvider) embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": model,
	})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
		if !retryable(resp.StatusCode) {
			return nil, permanent(err)
		}
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vectors := make([][]float32, len(apiResp.Data))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Close releases idle HTTP connections
func (p *JinaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
