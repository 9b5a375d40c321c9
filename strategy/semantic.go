package strategy

import (
	"context"
	"fmt"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// Semantic walks the merged boundary list in document order and starts a new
// chunk whenever a boundary clears the semantic threshold and the accumulated
// chunk has reached the minimum size. Chunks left under the minimum by an
// early high-confidence boundary are merged with the following chunk.
type Semantic struct{}

// Name implements gosemchunk.Strategy.
func (Semantic) Name() string { return string(gosemchunk.StrategySemantic) }

// Chunk implements gosemchunk.Strategy.
func (Semantic) Chunk(ctx context.Context, req gosemchunk.StrategyRequest) ([]gosemchunk.DocumentChunk, error) {
	if len(req.Units) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("semantic chunking cancelled: %w", err)
	}

	cfg := req.Config
	spans, forced := boundarySplit(req, span{start: 0, end: len(req.Units)}, cfg.MaxChunkSize)

	chunks := make([]gosemchunk.DocumentChunk, 0, len(spans))
	var prev *span
	for i := range spans {
		sp := spans[i]
		chunk, err := buildChunk(req, sp, prev, spanChunkType(req.Units, sp), 0)
		if err != nil {
			return nil, err
		}
		chunkWarnings(&chunk, cfg, forced[i])
		chunks = append(chunks, chunk)
		prev = &spans[i]
	}
	return chunks, nil
}
