package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// Milvus provides a vector storage implementation using a Milvus database.
// It handles operations for storing chunk embeddings and retrieving chunk
// ids by semantic search.
//
// The Close() method should be called when done to properly release
// resources.
type Milvus struct {
	client    *milvusclient.Client
	embedder  gosemchunk.Embedder
	vectorDim int
	topK      int
}

const (
	milvusChunksCollectionName = "chunks"

	cosineThreshold = 0.2
)

// NewMilvus creates a new Milvus client with the provided parameters. The
// embedder is used to vectorize query text and any chunk that arrives
// without an embedding. It returns an initialized Milvus struct and any
// error encountered during setup.
func NewMilvus(config *milvusclient.ClientConfig, topK, vectorDim int, embedder gosemchunk.Embedder) (Milvus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := milvusclient.New(ctx, config)
	if err != nil {
		return Milvus{}, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	m := Milvus{
		client:    c,
		embedder:  embedder,
		vectorDim: vectorDim,
		topK:      topK,
	}

	if err := m.createChunksCollection(ctx); err != nil {
		return Milvus{}, err
	}

	return m, nil
}

// VectorUpsertChunks stores the chunks with their embeddings, keyed by chunk
// id.
func (m Milvus) VectorUpsertChunks(chunks []gosemchunk.DocumentChunk) error {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	ids := make([]string, 0, len(chunks))
	docIDs := make([]string, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		vector := chunk.Embedding
		if vector == nil {
			embedded, err := m.embedder.Embed(ctx, []string{chunk.Content})
			if err != nil {
				return fmt.Errorf("failed to generate embedding for chunk: %w", err)
			}
			vector = embedded[0]
		}
		ids = append(ids, chunk.ChunkID)
		docIDs = append(docIDs, chunk.Metadata.DocumentID)
		vectors = append(vectors, vector)
	}

	opt := milvusclient.NewColumnBasedInsertOption(milvusChunksCollectionName).
		WithVarcharColumn("id", ids).
		WithVarcharColumn("document_id", docIDs).
		WithFloatVectorColumn("vector", m.vectorDim, vectors)
	if _, err := m.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	return nil
}

// VectorQueryChunks performs a semantic search over stored chunks and
// returns the matching chunk ids, most similar first.
func (m Milvus) VectorQueryChunks(query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	embedded, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding for query: %w", err)
	}
	vectors := []entity.Vector{entity.FloatVector(embedded[0])}

	annParam := index.NewCustomAnnParam()
	annParam.WithRadius(cosineThreshold)
	opt := milvusclient.
		NewSearchOption(milvusChunksCollectionName, m.topK, vectors).
		WithAnnParam(annParam)
	searchResult, err := m.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	results := make([]string, 0, m.topK)
	for _, result := range searchResult {
		for i := 0; i < result.ResultCount; i++ {
			id, err := result.GetColumn("id").Get(i)
			if err != nil {
				return nil, fmt.Errorf("failed to get chunk id from result: %w", err)
			}
			idStr, ok := id.(string)
			if !ok {
				return nil, fmt.Errorf("chunk id not string")
			}
			results = append(results, idStr)
		}
	}

	return results, nil
}

// Close closes the connection to Milvus.
func (m Milvus) Close(ctx context.Context) error {
	if m.client != nil {
		return m.client.Close(ctx)
	}
	return nil
}

func (m Milvus) createChunksCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(milvusChunksCollectionName))
	if err != nil {
		return fmt.Errorf("failed to check if chunks collection exists: %w", err)
	}

	if has {
		return nil
	}

	err = m.client.CreateCollection(ctx,
		milvusclient.SimpleCreateCollectionOptions(milvusChunksCollectionName, int64(m.vectorDim)).
			WithVarcharPK(true, 64))
	if err != nil {
		return fmt.Errorf("failed to create chunks collection: %w", err)
	}

	return nil
}
