package gosemchunk

import (
	"context"
	"errors"
	"strings"
)

// Embedder defines the capability interface for converting text spans into
// fixed-size vectors. It is injected by the caller and owned by the caller;
// the chunking pipeline makes no assumption about the underlying model or
// its dimensionality beyond "fixed-size, comparable via cosine similarity".
//
// Implementations must be safe for concurrent use, as a single Embedder may
// be shared read-only across concurrent document chunking calls.
type Embedder interface {
	// Embed maps a batch of texts to their embedding vectors. The returned
	// slice must have the same length and ordering as the input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Strategy defines the interface for chunking algorithms. A strategy consumes
// the segmented unit sequence together with the merged boundary candidates and
// emits ordered document chunks. Implementations live in the strategy package
// and are selected per call.
type Strategy interface {
	// Name returns the configuration name of the strategy.
	Name() string
	// Chunk turns the unit sequence and boundaries of a StrategyRequest into
	// an ordered list of document chunks. Chunk ids on the returned chunks are
	// provisional; stable ids are assigned by the assembler.
	Chunk(ctx context.Context, req StrategyRequest) ([]DocumentChunk, error)
}

// StrategyRequest carries everything a chunking strategy needs for a single
// document. All fields except Tracker are immutable during the call.
type StrategyRequest struct {
	// DocumentID identifies the document being chunked.
	DocumentID string
	// Units is the ordered atomic unit sequence produced by the segmenter.
	Units []Unit
	// Embeddings holds one vector per unit, or nil when the embedder was
	// unavailable. When non-nil, len(Embeddings) == len(Units).
	Embeddings [][]float32
	// Boundaries is the merged, score-thresholded boundary candidate list,
	// sorted by ascending position.
	Boundaries []BoundaryCandidate
	// Config is the validated configuration for this call.
	Config Config
	// Tracker is the per-document context tracker, non-nil only when
	// Config.TrackContext is set.
	Tracker *ContextTracker
	// Scorer computes coherence scores over unit spans. Never nil; it
	// returns ScoreUnknown when embeddings are unavailable.
	Scorer *CoherenceScorer
}

// StructureStorage defines the interface for persisting and retrieving
// assembled document structures.
type StructureStorage interface {
	StructurePut(structure DocumentStructure) error
	StructureGet(documentID string) (DocumentStructure, error)
}

// VectorStorage defines the interface for vector database operations over
// chunk embeddings, enabling semantic retrieval of chunk ids.
type VectorStorage interface {
	VectorUpsertChunks(chunks []DocumentChunk) error
	VectorQueryChunks(query string) ([]string, error)
}

// GraphStorage defines the interface for knowledge graph database operations.
type GraphStorage interface {
	GraphUpsertNode(node GraphNode) error
	GraphUpsertEdge(edge GraphEdge) error

	GraphNode(id string) (GraphNode, error)
	GraphRelatedNodes(id string) ([]GraphNode, error)
}

// Storage is a composite interface that combines StructureStorage,
// VectorStorage, and GraphStorage to provide comprehensive persistence for
// chunking results.
type Storage interface {
	StructureStorage
	VectorStorage
	GraphStorage
}

// Document represents a raw text document to be chunked. Structural hints are
// optional; when absent and Config.PreserveStructure is set, hints are derived
// from the content with MarkdownHints.
type Document struct {
	ID      string
	Content string
	Hints   []StructuralHint
}

var (
	// ErrConfiguration is returned when the chunking configuration is invalid.
	// It is always detected before any unit segmentation occurs.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNodeNotFound is returned when a graph node is not found in storage.
	ErrNodeNotFound = errors.New("graph node not found")
	// ErrStructureNotFound is returned when a document structure is not found
	// in storage.
	ErrStructureNotFound = errors.New("document structure not found")
	// ErrUnknownStrategy is returned when a configuration names a chunking
	// strategy that has no implementation.
	ErrUnknownStrategy = errors.New("unknown chunking strategy")
)

func cleanContent(content string) string {
	// Null characters break downstream serialization; strip them early.
	return strings.ReplaceAll(content, "\x00", "")
}

func appendIfUnique(slice []string, item string) []string {
	for _, ele := range slice {
		if ele == item {
			return slice
		}
	}
	return append(slice, item)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
