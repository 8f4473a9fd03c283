package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dshills/delphirag/pkg/types"
)

// LightRAG client defaults
const (
	DefaultLightRAGURL = "http://localhost:8080"
	DefaultBatchSize   = 20
	defaultTimeout     = 120 * time.Second
	maxAttempts        = 3
)

// LightRAGOptions configures a LightRAGClient
type LightRAGOptions struct {
	BaseURL           string
	APIKey            string // sent as X-API-Key when set
	BatchSize         int    // texts per insert request
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            logrus.FieldLogger
}

// LightRAGClient talks to a LightRAG server over its REST API
type LightRAGClient struct {
	baseURL   string
	apiKey    string
	batchSize int
	http      *http.Client
	limiter   *rate.Limiter
	log       logrus.FieldLogger
	backoff   time.Duration
}

// NewLightRAGClient creates a client for the server at opts.BaseURL
func NewLightRAGClient(opts LightRAGOptions) *LightRAGClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultLightRAGURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &LightRAGClient{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		batchSize: opts.BatchSize,
		http:      opts.HTTPClient,
		limiter:   rate.NewLimiter(limit, 1),
		log:       opts.Logger.WithField("component", "lightrag"),
		backoff:   500 * time.Millisecond,
	}
}

// Name returns "lightrag"
func (c *LightRAGClient) Name() string {
	return "lightrag"
}

// InsertKnowledgeGraph posts the chunk texts of kg in batches
func (c *LightRAGClient) InsertKnowledgeGraph(ctx context.Context, kg *types.KnowledgeGraph) error {
	if kg == nil || len(kg.Chunks) == 0 {
		return nil
	}
	docs, err := Documents(kg)
	if err != nil {
		return err
	}
	if err := c.InsertTexts(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert %s: %w", kg.Source, err)
	}

	c.log.WithFields(logrus.Fields{
		"source": kg.Source,
		"chunks": len(docs),
	}).Debug("inserted knowledge graph")
	return nil
}

// InsertTexts posts texts to /documents/texts
func (c *LightRAGClient) InsertTexts(ctx context.Context, texts []string) error {
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		body := map[string]interface{}{"texts": texts[start:end]}
		if err := c.do(ctx, http.MethodPost, "/documents/texts", body, nil); err != nil {
			return fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// Query asks the server a question and returns its answer
func (c *LightRAGClient) Query(ctx context.Context, question, mode string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question cannot be empty")
	}
	if err := ValidateMode(mode); err != nil {
		return "", err
	}
	if mode == "" {
		mode = ModeHybrid
	}

	var resp struct {
		Response string `json:"response"`
	}
	body := map[string]string{"query": question, "mode": mode}
	if err := c.do(ctx, http.MethodPost, "/query", body, &resp); err != nil {
		return "", fmt.Errorf("failed to query: %w", err)
	}
	return resp.Response, nil
}

// Health checks that the server is reachable and healthy
func (c *LightRAGClient) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("lightrag health check failed: %w", err)
	}
	return nil
}

// statusError is a non-2xx response
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("lightrag returned %d: %s", e.status, e.body)
}

// do sends one request, retrying transport errors, 429 and 5xx responses
func (c *LightRAGClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = c.roundTrip(ctx, method, path, payload, out)
		if lastErr == nil {
			return nil
		}
		var se *statusError
		if errors.As(lastErr, &se) && se.status != http.StatusTooManyRequests && se.status < 500 {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		c.log.WithError(lastErr).WithField("attempt", attempt).Warn("lightrag request failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return lastErr
}

func (c *LightRAGClient) roundTrip(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
