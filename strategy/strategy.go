// Package strategy provides the interchangeable chunking algorithms of
// go-sem-chunk: Adaptive, Semantic, Hierarchical, and ContextAware. All
// strategies respect the configured size window, never split an atomic unit,
// and fall back to a single chunk — or an emergency split — when no boundary
// clears the semantic threshold.
package strategy

import (
	"fmt"
	"strings"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
	"github.com/MegaGrindStone/go-sem-chunk/internal"
)

// ForConfig returns the strategy implementation selected by the
// configuration. It returns gosemchunk.ErrUnknownStrategy for a name with no
// implementation.
func ForConfig(cfg gosemchunk.Config) (gosemchunk.Strategy, error) {
	switch cfg.Strategy {
	case gosemchunk.StrategyAdaptive:
		return Adaptive{}, nil
	case gosemchunk.StrategySemantic, "":
		return Semantic{}, nil
	case gosemchunk.StrategyHierarchical:
		return Hierarchical{}, nil
	case gosemchunk.StrategyContextAware:
		return ContextAware{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", gosemchunk.ErrUnknownStrategy, cfg.Strategy)
	}
}

// span is a half-open range of unit indices.
type span struct {
	start, end int
}

func (s span) size(units []gosemchunk.Unit) int {
	total := 0
	for _, unit := range units[s.start:s.end] {
		total += len(unit.Text)
	}
	return total
}

// buildChunk assembles a DocumentChunk from a unit span, prefixing whole
// overlap units from the previous span within the configured overlap budget.
// The chunk id is left for the assembler; offsets always delimit the span
// itself, excluding the overlap prefix.
func buildChunk(req gosemchunk.StrategyRequest, sp span, prev *span, chunkType string, level int) (gosemchunk.DocumentChunk, error) {
	units := req.Units

	overlapStart := sp.start
	if prev != nil && req.Config.OverlapSize > 0 {
		budget := req.Config.OverlapSize
		for i := sp.start - 1; i >= prev.start; i-- {
			if budget -= len(units[i].Text); budget < 0 {
				break
			}
			overlapStart = i
		}
	}

	var content strings.Builder
	for _, unit := range units[overlapStart:sp.end] {
		content.WriteString(unit.Text)
	}

	tokenSize, err := internal.CountTokens(content.String())
	if err != nil {
		return gosemchunk.DocumentChunk{}, fmt.Errorf("failed to count tokens: %w", err)
	}

	var embedding []float32
	if req.Embeddings != nil {
		embedding = internal.Centroid(req.Embeddings[sp.start:sp.end])
	}

	chunk := gosemchunk.DocumentChunk{
		Content:   content.String(),
		Embedding: embedding,
		Metadata: gosemchunk.ChunkMetadata{
			DocumentID:      req.DocumentID,
			ChunkType:       chunkType,
			Level:           level,
			StartOffset:     units[sp.start].StartOffset,
			EndOffset:       units[sp.end-1].EndOffset,
			OverlapUnits:    sp.start - overlapStart,
			TokenSize:       tokenSize,
			SemanticScore:   req.Scorer.SpanSimilarity(sp.start, sp.end),
			CoherenceScore:  req.Scorer.SpanScore(sp.start, sp.end),
			ImportanceScore: gosemchunk.ScoreUnknown,
		},
	}
	if req.Config.ExtractEntities {
		chunk.Metadata.Entities = gosemchunk.ExtractEntities(chunk.Content)
	}
	return chunk, nil
}

// spanChunkType derives a chunk type from the structural makeup of its units.
func spanChunkType(units []gosemchunk.Unit, sp span) string {
	counts := map[gosemchunk.StructuralType]int{}
	for _, unit := range units[sp.start:sp.end] {
		counts[unit.StructuralType]++
	}
	if len(counts) == 1 {
		for typ := range counts {
			if typ == gosemchunk.StructuralSentence {
				return "prose"
			}
			return string(typ)
		}
	}
	return "mixed"
}

// enforceMaxSize splits any span exceeding the size limit at the unit
// boundary nearest the limit. A single unit larger than the limit stays
// whole; the caller flags it as oversized instead of corrupting it.
// The second return marks, per resulting span, whether it came out of such an
// emergency split.
func enforceMaxSize(units []gosemchunk.Unit, spans []span, limit int) ([]span, []bool) {
	var result []span
	var forced []bool
	for _, sp := range spans {
		if sp.size(units) <= limit {
			result = append(result, sp)
			forced = append(forced, false)
			continue
		}
		current := sp.start
		size := 0
		for i := sp.start; i < sp.end; i++ {
			unitSize := len(units[i].Text)
			if size > 0 && size+unitSize > limit {
				result = append(result, span{start: current, end: i})
				forced = append(forced, true)
				current = i
				size = 0
			}
			size += unitSize
		}
		if current < sp.end {
			result = append(result, span{start: current, end: sp.end})
			forced = append(forced, true)
		}
	}
	return result, forced
}

// boundarySplit cuts a unit range into chunk spans at the boundary positions
// that clear the semantic threshold, folds spans left under the minimum size,
// and emergency-splits anything still above the limit.
func boundarySplit(req gosemchunk.StrategyRequest, sp span, limit int) ([]span, []bool) {
	cfg := req.Config
	cuts := boundaryPositions(req.Boundaries)

	var spans []span
	current := span{start: sp.start}
	size := 0
	for i := sp.start; i < sp.end; i++ {
		if cand, ok := cuts[i]; ok && i > current.start &&
			cand.Score >= cfg.SemanticThreshold && size >= cfg.MinChunkSize {
			current.end = i
			spans = append(spans, current)
			current = span{start: i}
			size = 0
		}
		size += len(req.Units[i].Text)
	}
	current.end = sp.end
	spans = append(spans, current)

	spans = mergeUndersized(req.Units, spans, cfg.MinChunkSize)
	return enforceMaxSize(req.Units, spans, limit)
}

// mergeUndersized folds spans below the minimum size into their following
// span; a trailing undersized span folds backward instead.
func mergeUndersized(units []gosemchunk.Unit, spans []span, minSize int) []span {
	if len(spans) < 2 {
		return spans
	}
	var result []span
	for i := 0; i < len(spans); i++ {
		sp := spans[i]
		for sp.size(units) < minSize && i+1 < len(spans) {
			sp.end = spans[i+1].end
			i++
		}
		result = append(result, sp)
	}
	if len(result) >= 2 {
		last := result[len(result)-1]
		if last.size(units) < minSize {
			result[len(result)-2].end = last.end
			result = result[:len(result)-1]
		}
	}
	return result
}

// boundaryPositions collapses candidates into a set of cut positions.
func boundaryPositions(boundaries []gosemchunk.BoundaryCandidate) map[int]gosemchunk.BoundaryCandidate {
	positions := make(map[int]gosemchunk.BoundaryCandidate, len(boundaries))
	for _, cand := range boundaries {
		positions[cand.Position] = cand
	}
	return positions
}

// chunkWarnings appends size-related warnings for the finished chunk. A chunk
// over MaxChunkSize is flagged even when atomic content legitimately earned it
// the higher split ceiling; the ceiling governs where splits happen, not what
// counts as oversized.
func chunkWarnings(chunk *gosemchunk.DocumentChunk, cfg gosemchunk.Config, emergency bool) {
	ownSize := chunk.Metadata.EndOffset - chunk.Metadata.StartOffset
	if ownSize > cfg.MaxChunkSize {
		chunk.Metadata.Warnings = append(chunk.Metadata.Warnings, gosemchunk.Warning{
			Code: gosemchunk.WarnOversizedChunk,
			Message: fmt.Sprintf("chunk spans %d characters, above the %d limit, to keep atomic content whole",
				ownSize, cfg.MaxChunkSize),
		})
	}
	if emergency {
		chunk.Metadata.Warnings = append(chunk.Metadata.Warnings, gosemchunk.Warning{
			Code:    gosemchunk.WarnEmergencySplit,
			Message: "no boundary candidate was available; split at the unit boundary nearest the size limit",
		})
	}
}
