// Package goopenai implements ai.Embedder on top of the go-openai client.
//
// It targets the OpenAI embeddings endpoint (text-embedding-ada-002 and
// later models). An EmbeddingHost in the config overrides the base URL.
package goopenai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/mediasearch/ai"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultModel matches the model the indexed corpus was originally built with.
const DefaultModel = string(openai.AdaEmbeddingV2)

// Embedder implements ai.Embedder with go-openai.
type Embedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	logger *slog.Logger
}

// NewEmbedder creates an embedder for the OpenAI API.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.EmbeddingHost != "" {
		clientConfig.BaseURL = config.EmbeddingHost
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	model := config.EmbeddingModel
	if model == "" {
		model = DefaultModel
	}

	return &Embedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  openai.EmbeddingModel(model),
		logger: slog.Default().With("component", "goopenai-embedder"),
	}, nil
}

// EmbedText embeds a single text.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbedding, ai.ErrEmptyText)
	}

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in one request. Results are ordered by the
// index the API reports, not by arrival order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts), "model", e.model)

	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", ai.ErrEmbedding, err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range rsp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			continue
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: %w: missing vector for input %d", ai.ErrEmbedding, ai.ErrNoEmbedding, i)
		}
	}
	return vectors, nil
}
