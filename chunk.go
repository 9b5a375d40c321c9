package gosemchunk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// embedBatchSize caps the number of unit texts sent to the embedder per call.
const embedBatchSize = 64

// ChunkDocument runs the full chunking pipeline on a document: cleaning,
// segmentation, unit embedding, boundary detection, strategy chunking, and
// assembly into a DocumentStructure.
//
// The embedder may be nil or failing; the pipeline then degrades to lexical
// boundary detection, marks semantic scores as unknown, and records a
// warning on the returned structure instead of failing. A context
// cancellation is the only embedder failure that aborts the call.
// It returns an error if the configuration is invalid or any remaining step
// fails.
func ChunkDocument(ctx context.Context, doc Document, strategy Strategy, embedder Embedder, cfg Config, logger *slog.Logger) (DocumentStructure, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(
		slog.String("package", "gosemchunk"),
		slog.String("function", "ChunkDocument"),
	)

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return DocumentStructure{}, err
	}
	if strategy == nil {
		return DocumentStructure{}, fmt.Errorf("%w: nil strategy", ErrConfiguration)
	}

	content := cleanContent(doc.Content)
	if strings.TrimSpace(content) == "" {
		logger.Warn("Empty document content", "documentID", doc.ID)
		return emptyStructure(doc.ID, content), nil
	}

	hints := doc.Hints
	if hints == nil && cfg.PreserveStructure {
		hints = MarkdownHints(content)
	}

	units := SegmentUnits(content, hints)
	logger.Info("Segmented units", "documentID", doc.ID, "count", len(units))

	var warnings []Warning
	embeddings, embedWarn, err := embedUnits(ctx, embedder, units, logger)
	if err != nil {
		return DocumentStructure{}, err
	}
	if embedWarn != nil {
		warnings = append(warnings, *embedWarn)
	}

	boundaries, err := DetectBoundaries(ctx, units, embeddings, cfg)
	if err != nil {
		return DocumentStructure{}, fmt.Errorf("failed to detect boundaries: %w", err)
	}
	logger.Debug("Detected boundaries", "count", len(boundaries))

	req := StrategyRequest{
		DocumentID: doc.ID,
		Units:      units,
		Embeddings: embeddings,
		Boundaries: boundaries,
		Config:     cfg,
		Scorer:     NewCoherenceScorer(units, embeddings, cfg),
	}
	if cfg.TrackContext {
		req.Tracker = NewContextTracker()
	}

	chunks, err := strategy.Chunk(ctx, req)
	if err != nil {
		return DocumentStructure{}, fmt.Errorf("strategy %q failed: %w", strategy.Name(), err)
	}
	logger.Info("Chunked document", "documentID", doc.ID, "strategy", strategy.Name(), "chunks", len(chunks))

	structure := assembleStructure(doc.ID, chunks, cfg, warnings)

	if cfg.BuildGraph {
		if err := ctx.Err(); err != nil {
			return DocumentStructure{}, fmt.Errorf("graph building cancelled: %w", err)
		}
		structure.KnowledgeGraph = BuildKnowledgeGraph(structure, cfg)
		logger.Debug("Built knowledge graph",
			"nodes", len(structure.KnowledgeGraph.Nodes),
			"edges", len(structure.KnowledgeGraph.Edges))
	}

	return structure, nil
}

// embedUnits fetches one embedding per unit in bounded batches. A nil
// embedder or a failed call yields nil embeddings plus a warning; only
// context cancellation is returned as an error.
func embedUnits(ctx context.Context, embedder Embedder, units []Unit, logger *slog.Logger) ([][]float32, *Warning, error) {
	unavailable := func(reason string) *Warning {
		return &Warning{
			Code:    WarnEmbeddingUnavailable,
			Message: fmt.Sprintf("embeddings unavailable (%s); boundary detection degraded to lexical cohesion", reason),
		}
	}

	if embedder == nil {
		return nil, unavailable("no embedder provided"), nil
	}

	texts := make([]string, len(units))
	for i, unit := range units {
		texts[i] = unit.Text
	}

	embeddings := make([][]float32, 0, len(units))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, fmt.Errorf("embedding cancelled: %w", ctxErr)
			}
			logger.Warn("Embedder call failed, continuing without embeddings", "err", err)
			return nil, unavailable(err.Error()), nil
		}
		if len(batch) != end-start {
			logger.Warn("Embedder returned mismatched batch, continuing without embeddings",
				"want", end-start, "got", len(batch))
			return nil, unavailable("mismatched batch length"), nil
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil, nil
}

// emptyStructure is the trivial result for empty or whitespace-only input:
// a single chunk covering the raw content, flagged rather than rejected.
func emptyStructure(docID, content string) DocumentStructure {
	warning := Warning{
		Code:    WarnEmptyInput,
		Message: "document content is empty or whitespace only",
	}
	chunk := DocumentChunk{
		ChunkID: chunkID(docID, 0),
		Content: content,
		Metadata: ChunkMetadata{
			ChunkID:         chunkID(docID, 0),
			DocumentID:      docID,
			ChunkType:       "prose",
			StartOffset:     0,
			EndOffset:       len(content),
			SemanticScore:   ScoreUnknown,
			CoherenceScore:  ScoreUnknown,
			ImportanceScore: ScoreUnknown,
			Warnings:        []Warning{warning},
		},
	}
	return DocumentStructure{
		DocumentID: docID,
		Chunks:     []DocumentChunk{chunk},
		Warnings:   []Warning{warning},
	}
}
