package strategy

import (
	"context"
	"fmt"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// Hierarchical turns headings into parent chunks and the content below each
// heading into its children, nesting sub-headings under their ancestors.
// Content before the first heading stays at level zero with no parent.
// Chunk ids are provisional; the assembler replaces them with stable ids and
// rewrites the parent and child references to match.
type Hierarchical struct{}

// Name implements gosemchunk.Strategy.
func (Hierarchical) Name() string { return string(gosemchunk.StrategyHierarchical) }

// section is an open heading scope on the nesting stack.
type section struct {
	headingLevel int
	chunkIdx     int
	depth        int
}

// Chunk implements gosemchunk.Strategy.
func (Hierarchical) Chunk(ctx context.Context, req gosemchunk.StrategyRequest) ([]gosemchunk.DocumentChunk, error) {
	if len(req.Units) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hierarchical chunking cancelled: %w", err)
	}

	cfg := req.Config

	var chunks []gosemchunk.DocumentChunk
	var stack []section

	emitContent := func(runStart, runEnd int) error {
		if runStart >= runEnd {
			return nil
		}
		level := 0
		parentIdx := -1
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			level = top.depth + 1
			parentIdx = top.chunkIdx
		}
		spans, forced := boundarySplit(req, span{start: runStart, end: runEnd}, cfg.MaxChunkSize)
		var prev *span
		for i := range spans {
			sp := spans[i]
			chunk, err := buildChunk(req, sp, prev, spanChunkType(req.Units, sp), level)
			if err != nil {
				return err
			}
			chunk.ChunkID = fmt.Sprintf("p%d", len(chunks))
			chunkWarnings(&chunk, cfg, forced[i])
			if parentIdx >= 0 {
				chunk.Metadata.ParentChunkID = chunks[parentIdx].ChunkID
				chunks[parentIdx].Metadata.ChildrenChunkIDs = append(
					chunks[parentIdx].Metadata.ChildrenChunkIDs, chunk.ChunkID)
			}
			chunks = append(chunks, chunk)
			prev = &spans[i]
		}
		return nil
	}

	runStart := 0
	for i, unit := range req.Units {
		if unit.StructuralType != gosemchunk.StructuralHeading {
			continue
		}
		if err := emitContent(runStart, i); err != nil {
			return nil, err
		}
		runStart = i + 1

		// A heading closes every open section at its level or deeper.
		for len(stack) > 0 && stack[len(stack)-1].headingLevel >= unit.HeadingLevel {
			stack = stack[:len(stack)-1]
		}
		depth := len(stack) + 1

		chunk, err := buildChunk(req, span{start: i, end: i + 1}, nil,
			string(gosemchunk.StructuralHeading), depth)
		if err != nil {
			return nil, err
		}
		chunk.ChunkID = fmt.Sprintf("p%d", len(chunks))
		chunkWarnings(&chunk, cfg, false)
		if len(stack) > 0 {
			parentIdx := stack[len(stack)-1].chunkIdx
			chunk.Metadata.ParentChunkID = chunks[parentIdx].ChunkID
			chunks[parentIdx].Metadata.ChildrenChunkIDs = append(
				chunks[parentIdx].Metadata.ChildrenChunkIDs, chunk.ChunkID)
		}
		stack = append(stack, section{
			headingLevel: unit.HeadingLevel,
			chunkIdx:     len(chunks),
			depth:        depth,
		})
		chunks = append(chunks, chunk)
	}
	if err := emitContent(runStart, len(req.Units)); err != nil {
		return nil, err
	}
	return chunks, nil
}
