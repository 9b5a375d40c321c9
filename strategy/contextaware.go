package strategy

import (
	"context"
	"fmt"
	"strings"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
	"github.com/MegaGrindStone/go-sem-chunk/internal"
)

// ContextAware starts from the same boundary-driven spans as Semantic, then
// consults the context tracker before committing each cut: a span that still
// continues the tracked entities, vocabulary, and topic is folded into the
// chunk before it as long as the merge stays under the size limit. The
// tracker advances once per span so its window reflects the document in
// reading order.
type ContextAware struct{}

// Name implements gosemchunk.Strategy.
func (ContextAware) Name() string { return string(gosemchunk.StrategyContextAware) }

// Chunk implements gosemchunk.Strategy.
func (ContextAware) Chunk(ctx context.Context, req gosemchunk.StrategyRequest) ([]gosemchunk.DocumentChunk, error) {
	if len(req.Units) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context-aware chunking cancelled: %w", err)
	}

	cfg := req.Config
	tracker := req.Tracker
	if tracker == nil {
		tracker = gosemchunk.NewContextTracker()
	}

	spans, forced := boundarySplit(req, span{start: 0, end: len(req.Units)}, cfg.MaxChunkSize)

	var merged []span
	var mergedForced []bool
	for i, sp := range spans {
		probe := probeChunk(req, sp)
		if len(merged) > 0 && tracker.Continuity(probe) > cfg.ContinuityThreshold {
			last := merged[len(merged)-1]
			if (span{start: last.start, end: sp.end}).size(req.Units) <= cfg.MaxChunkSize {
				merged[len(merged)-1].end = sp.end
				mergedForced[len(mergedForced)-1] = mergedForced[len(mergedForced)-1] || forced[i]
				tracker.Advance(probe)
				continue
			}
		}
		merged = append(merged, sp)
		mergedForced = append(mergedForced, forced[i])
		tracker.Advance(probe)
	}

	chunks := make([]gosemchunk.DocumentChunk, 0, len(merged))
	var prev *span
	for i := range merged {
		sp := merged[i]
		chunk, err := buildChunk(req, sp, prev, spanChunkType(req.Units, sp), 0)
		if err != nil {
			return nil, err
		}
		chunkWarnings(&chunk, cfg, mergedForced[i])
		chunks = append(chunks, chunk)
		prev = &merged[i]
	}
	return chunks, nil
}

// probeChunk builds the throwaway chunk the tracker scores and consumes; it
// skips tokenization and scoring since only content and embedding matter.
func probeChunk(req gosemchunk.StrategyRequest, sp span) gosemchunk.DocumentChunk {
	var content strings.Builder
	for _, unit := range req.Units[sp.start:sp.end] {
		content.WriteString(unit.Text)
	}
	var embedding []float32
	if req.Embeddings != nil {
		embedding = internal.Centroid(req.Embeddings[sp.start:sp.end])
	}
	return gosemchunk.DocumentChunk{Content: content.String(), Embedding: embedding}
}
