package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

func setupBoltTestDB(t *testing.T) Bolt {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	b, err := NewBolt(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		b.DB.Close()
	})

	return b
}

func testStructure() gosemchunk.DocumentStructure {
	return gosemchunk.DocumentStructure{
		DocumentID: "doc-1",
		Chunks: []gosemchunk.DocumentChunk{
			{
				ChunkID: "doc-1-chunk-0",
				Content: "Photosynthesis converts light into chemical energy.",
				Metadata: gosemchunk.ChunkMetadata{
					ChunkID:        "doc-1-chunk-0",
					DocumentID:     "doc-1",
					ChunkType:      "prose",
					EndOffset:      51,
					SemanticScore:  0.8,
					CoherenceScore: 0.75,
				},
			},
		},
		GlobalTopics:    []string{"photosynthesis"},
		DocumentSummary: "Photosynthesis converts light into chemical energy.",
	}
}

func TestBoltStructureRoundTrip(t *testing.T) {
	b := setupBoltTestDB(t)

	stored := testStructure()
	require.NoError(t, b.StructurePut(stored))

	retrieved, err := b.StructureGet(stored.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, stored, retrieved)
}

func TestBoltStructureOverwrite(t *testing.T) {
	b := setupBoltTestDB(t)

	stored := testStructure()
	require.NoError(t, b.StructurePut(stored))

	stored.DocumentSummary = "Updated summary."
	require.NoError(t, b.StructurePut(stored))

	retrieved, err := b.StructureGet(stored.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Updated summary.", retrieved.DocumentSummary)
}

func TestBoltStructureNotFound(t *testing.T) {
	b := setupBoltTestDB(t)

	_, err := b.StructureGet("missing")
	assert.ErrorIs(t, err, gosemchunk.ErrStructureNotFound)
}
