package strategy

import (
	"context"
	"fmt"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
	"github.com/MegaGrindStone/go-sem-chunk/internal"
)

// denseEntityRatio is the entities-per-word ratio above which a prose region
// counts as entity-dense and gets a halved size limit, so that fact-heavy
// passages land in smaller, more retrievable chunks.
const denseEntityRatio = 0.08

// Adaptive classifies the document into regions and applies a different
// splitting rule to each: runs of atomic units become single chunks up to the
// atomic size ceiling, entity-dense prose is cut against a halved size limit,
// and plain prose follows the boundary list the way Semantic does.
type Adaptive struct{}

// Name implements gosemchunk.Strategy.
func (Adaptive) Name() string { return string(gosemchunk.StrategyAdaptive) }

// Chunk implements gosemchunk.Strategy.
func (Adaptive) Chunk(ctx context.Context, req gosemchunk.StrategyRequest) ([]gosemchunk.DocumentChunk, error) {
	if len(req.Units) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("adaptive chunking cancelled: %w", err)
	}

	cfg := req.Config

	var chunks []gosemchunk.DocumentChunk
	var prev *span
	for _, region := range classifyRegions(req.Units) {
		spans, forced := splitRegion(req, region)
		for i, sp := range spans {
			chunk, err := buildChunk(req, sp, prev, spanChunkType(req.Units, sp), 0)
			if err != nil {
				return nil, err
			}
			chunkWarnings(&chunk, cfg, forced[i])
			chunks = append(chunks, chunk)
			prev = &spans[i]
		}
	}
	return chunks, nil
}

// region is a maximal run of units sharing one treatment.
type region struct {
	span
	atomic bool
}

// classifyRegions groups consecutive units by atomicity. Sentences between
// two structural blocks form their own prose region even when short; the
// assembler merges undersized chunks later.
func classifyRegions(units []gosemchunk.Unit) []region {
	var regions []region
	current := region{span: span{start: 0}, atomic: units[0].IsAtomic}
	for i := 1; i < len(units); i++ {
		if units[i].IsAtomic == current.atomic {
			continue
		}
		current.end = i
		regions = append(regions, current)
		current = region{span: span{start: i}, atomic: units[i].IsAtomic}
	}
	current.end = len(units)
	return append(regions, current)
}

// splitRegion cuts one region into chunk spans under the limit its
// classification earns it.
func splitRegion(req gosemchunk.StrategyRequest, reg region) ([]span, []bool) {
	cfg := req.Config

	if reg.atomic {
		if reg.size(req.Units) <= cfg.AtomicSizeCeiling {
			return []span{reg.span}, []bool{false}
		}
		// A run of atomic units over the ceiling still splits between
		// units; only a single oversized unit stays whole.
		return enforceMaxSize(req.Units, []span{reg.span}, cfg.AtomicSizeCeiling)
	}

	limit := cfg.MaxChunkSize
	if entityDense(req.Units, reg.span) {
		limit = cfg.MaxChunkSize / 2
		if limit < cfg.MinChunkSize {
			limit = cfg.MinChunkSize
		}
	}

	return boundarySplit(req, reg.span, limit)
}

// entityDense reports whether the span carries enough named entities per word
// to warrant smaller chunks.
func entityDense(units []gosemchunk.Unit, sp span) bool {
	words := 0
	entities := 0
	for _, unit := range units[sp.start:sp.end] {
		words += len(internal.Tokenize(unit.Text))
		entities += len(gosemchunk.ExtractEntities(unit.Text))
	}
	if words == 0 {
		return false
	}
	return float64(entities)/float64(words) > denseEntityRatio
}
