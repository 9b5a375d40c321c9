// Package embedder provides Embedder implementations backed by OpenAI,
// OpenAI-compatible servers, Ollama, and chromem-go embedding functions.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the Embedder interface for OpenAI's
// embedding models.
type OpenAI struct {
	model string

	client *goopenai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance.
func NewOpenAI(apiKey, model string, logger *slog.Logger) OpenAI {
	return OpenAI{
		model:  model,
		client: goopenai.NewClient(apiKey),
		logger: logger.With(slog.String("module", "openai")),
	}
}

// Embed requests embeddings for a batch of texts from the OpenAI API.
func (o OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: texts,
		Model: goopenai.EmbeddingModel(o.model),
	})
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	embeddings := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}
