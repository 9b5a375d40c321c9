package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/philippgille/chromem-go"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// Chromem provides a vector storage implementation using the embedded
// chromem-go database. It handles operations for storing chunk embeddings
// and retrieving chunk ids by semantic search.
type Chromem struct {
	ChunksColl *chromem.Collection

	topK int
}

// NewChromem creates a new chromem-go client with the provided parameters.
// It returns an initialized Chromem struct and any error encountered during
// setup. The dbPath parameter specifies where to persist the database, topK
// defines the number of results to return in queries, and embeddingFunc
// provides the vector embedding capability for queries and for chunks that
// arrive without an embedding.
func NewChromem(dbPath string, topK int, embeddingFunc chromem.EmbeddingFunc) (Chromem, error) {
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return Chromem{}, fmt.Errorf("failed to create chromem db: %w", err)
	}

	chunksColl, err := db.GetOrCreateCollection("chunks", nil, embeddingFunc)
	if err != nil {
		return Chromem{}, fmt.Errorf("failed to create chunks collection: %w", err)
	}

	return Chromem{
		ChunksColl: chunksColl,
		topK:       topK,
	}, nil
}

// VectorUpsertChunks stores the chunks with their embeddings, keyed by chunk
// id. Chunks without an embedding are embedded by the collection's embedding
// function on insert.
func (c Chromem) VectorUpsertChunks(chunks []gosemchunk.DocumentChunk) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, chunk := range chunks {
		doc := chromem.Document{
			ID:        chunk.ChunkID,
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata: map[string]string{
				"document_id": chunk.Metadata.DocumentID,
				"chunk_type":  chunk.Metadata.ChunkType,
			},
		}
		if err := c.ChunksColl.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to add chunk document: %w", err)
		}
	}

	return nil
}

// VectorQueryChunks performs a semantic search over stored chunks and
// returns the matching chunk ids, most similar first.
func (c Chromem) VectorQueryChunks(query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topK := min(c.topK, c.ChunksColl.Count())
	if topK == 0 {
		return nil, nil
	}

	vecRes, err := c.ChunksColl.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	res := make([]string, len(vecRes))
	for i, vec := range vecRes {
		res[i] = vec.ID
	}

	return res, nil
}
