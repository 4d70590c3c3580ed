// Package embedding produces and compares text embeddings for the semantic
// similarity signal and duplicate detection.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/semaphore"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// Disabled is the Embedder for deployments without an embedding provider.
// Every call fails, so duplicate checks defer through the retry flag.
type Disabled struct{}

func (Disabled) Embed(_ context.Context, _ string) ([]float64, error) {
	return nil, fmt.Errorf("embedding provider not configured")
}

func (Disabled) Model() string { return "disabled" }

type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Concurrency bounds in-flight embedding requests across the process.
	Concurrency int64
	Timeout     time.Duration
}

type openaiEmbedder struct {
	client openai.Client
	model  string
	sem    *semaphore.Weighted
	limit  time.Duration
}

func NewOpenAI(cfg Config) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &openaiEmbedder{
		client: openai.NewClient(opts...),
		model:  model,
		sem:    semaphore.NewWeighted(concurrency),
		limit:  timeout,
	}, nil
}

func (e *openaiEmbedder) Model() string {
	return e.model
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire embedding slot: %w", err)
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.limit)
	defer cancel()

	start := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	slog.DebugContext(ctx, "embedding created",
		"model", e.model,
		"input_chars", len(text),
		"dimensions", len(resp.Data[0].Embedding),
		"duration_ms", time.Since(start).Milliseconds())

	return resp.Data[0].Embedding, nil
}
