package embedder

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// Chromem adapts a chromem-go embedding function to the Embedder interface.
// chromem-go ships functions for OpenAI, Mistral, Jina, LocalAI, and others,
// which makes this the quickest way to embed without running a model server.
type Chromem struct {
	fn chromem.EmbeddingFunc
}

// NewChromem creates a new Chromem instance wrapping the given embedding
// function, for example chromem.NewEmbeddingFuncOpenAI or
// chromem.NewEmbeddingFuncOllama.
func NewChromem(fn chromem.EmbeddingFunc) Chromem {
	return Chromem{fn: fn}
}

// Embed calls the wrapped function once per text. chromem embedding
// functions take a single text, so there is no batching to exploit.
func (c Chromem) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := c.fn(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("error embedding text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// ChromemFunc adapts an Embedder to the chromem.EmbeddingFunc signature, for
// callers that feed a chromem collection with the same embedder the chunking
// pipeline uses.
func ChromemFunc(embedder gosemchunk.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embeddings, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(embeddings) != 1 {
			return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
		}
		return embeddings[0], nil
	}
}
