// Package openai embeds text through any OpenAI-compatible embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync/atomic"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/logger"
)

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimensions int
	Timeout    time.Duration
	MaxRetries int
}

// Client is an OpenAI-compatible embeddings client implementing embedding.Embedder.
type Client struct {
	api        *goopenai.Client
	model      string
	dimensions int
	dimension  atomic.Int64
	maxRetries int
	backoff    func(attempt int) time.Duration
}

var knownDimensions = map[string]int{
	string(goopenai.SmallEmbedding3): 1536,
	string(goopenai.LargeEmbedding3): 3072,
	string(goopenai.AdaEmbeddingV2):  1536,
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	apiCfg := goopenai.DefaultConfig(key)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	c := &Client{
		api:        goopenai.NewClientWithConfig(apiCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		backoff:    retryDelay,
	}
	switch {
	case cfg.Dimensions > 0:
		c.dimension.Store(int64(cfg.Dimensions))
	case knownDimensions[cfg.Model] > 0:
		c.dimension.Store(int64(knownDimensions[cfg.Model]))
	}
	return c, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
// For models of unknown size it is 0 until the first successful response.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// EmbedBatch sends all texts in one request, retrying rate limits and server errors.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	req := goopenai.EmbeddingRequest{
		Input:          texts,
		Model:          goopenai.EmbeddingModel(c.model),
		EncodingFormat: goopenai.EmbeddingEncodingFormatFloat,
		Dimensions:     c.dimensions,
	}

	var resp goopenai.EmbeddingResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = c.api.CreateEmbeddings(ctx, req)
		if err == nil {
			break
		}
		if attempt >= c.maxRetries || !retryable(err) {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		delay := c.backoff(attempt)
		logger.Debug("embedding request failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	out := make([]domain.Vector, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = embedding.Normalize(domain.Vector(d.Embedding))
	}
	if c.dimension.Load() == 0 && len(out) > 0 {
		c.dimension.CompareAndSwap(0, int64(len(out[0])))
	}
	return out, nil
}

func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}
