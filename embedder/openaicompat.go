package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAICompat provides an implementation of the Embedder interface for
// OpenAI-compatible API services. It works against any server exposing the
// /embeddings endpoint of the OpenAI API.
type OpenAICompat struct {
	BaseURL string
	model   string

	client *goopenai.Client
	logger *slog.Logger
}

// NewOpenAICompat creates a new OpenAICompat instance with the specified host
// URL and model name. The host parameter should be a valid URL pointing to an
// OpenAI-compatible API server.
func NewOpenAICompat(host, apiKey, model string, logger *slog.Logger) OpenAICompat {
	baseURL := strings.TrimSuffix(host, "/")

	config := goopenai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return OpenAICompat{
		BaseURL: baseURL,
		model:   model,
		client:  goopenai.NewClientWithConfig(config),
		logger:  logger.With(slog.String("module", "openaicompat")),
	}
}

// Embed requests embeddings for a batch of texts from the compatible server.
func (o OpenAICompat) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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
