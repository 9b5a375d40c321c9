package gosemchunk

import (
	"fmt"
	"log/slog"
)

// Persist writes an assembled document structure to storage: the structure
// itself, the chunk embeddings, and the knowledge graph when the structure
// carries one. It returns an error if any storage call fails; partial writes
// are not rolled back.
func Persist(structure DocumentStructure, storage Storage, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(
		slog.String("package", "gosemchunk"),
		slog.String("function", "Persist"),
	)

	logger.Info("Upserting document structure",
		"documentID", structure.DocumentID, "chunks", len(structure.Chunks))

	if err := storage.StructurePut(structure); err != nil {
		return fmt.Errorf("failed to put structure: %w", err)
	}

	if err := storage.VectorUpsertChunks(structure.Chunks); err != nil {
		return fmt.Errorf("failed to upsert chunk vectors: %w", err)
	}

	if structure.KnowledgeGraph == nil {
		return nil
	}

	logger.Info("Upserting knowledge graph",
		"nodes", len(structure.KnowledgeGraph.Nodes),
		"edges", len(structure.KnowledgeGraph.Edges))

	for _, node := range structure.KnowledgeGraph.Nodes {
		if err := storage.GraphUpsertNode(node); err != nil {
			return fmt.Errorf("failed to upsert graph node %q: %w", node.ID, err)
		}
	}
	for _, edge := range structure.KnowledgeGraph.Edges {
		if err := storage.GraphUpsertEdge(edge); err != nil {
			return fmt.Errorf("failed to upsert graph edge %q->%q: %w", edge.SourceID, edge.TargetID, err)
		}
	}
	return nil
}
