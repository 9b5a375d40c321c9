package gosemchunk

// ScoreUnknown marks a score whose underlying signal was unavailable, for
// example when the embedder failed. Consumers must treat it as missing rather
// than as zero; every defined score lies in [0,1].
const ScoreUnknown float64 = -1

// KnownScore reports whether a score carries a defined value.
func KnownScore(score float64) bool {
	return score >= 0
}

// StructuralType classifies the structural role of a unit within the source
// document.
type StructuralType string

// Structural types recognized by the segmenter.
const (
	StructuralSentence  StructuralType = "sentence"
	StructuralHeading   StructuralType = "heading"
	StructuralCodeBlock StructuralType = "code_block"
	StructuralTable     StructuralType = "table"
	StructuralListItem  StructuralType = "list_item"
)

// StructuralHint marks a region of the raw text already known to carry
// structure, typically produced by an upstream layout pass or derived from
// markdown with MarkdownHints. Regions of atomic types become single units
// that are never split internally.
type StructuralHint struct {
	StartOffset  int            `json:"start_offset"`
	EndOffset    int            `json:"end_offset"`
	Type         StructuralType `json:"type"`
	HeadingLevel int            `json:"heading_level,omitempty"`
}

// Unit is an atomic span of source text. Units tile the document: each unit's
// EndOffset equals the next unit's StartOffset, and Text is exactly the source
// slice between the two offsets, so concatenating unit texts in order
// reconstructs the document. Units are immutable once segmented.
type Unit struct {
	StartOffset    int            `json:"start_offset"`
	EndOffset      int            `json:"end_offset"`
	Text           string         `json:"text"`
	IsAtomic       bool           `json:"is_atomic"`
	StructuralType StructuralType `json:"structural_type"`
	HeadingLevel   int            `json:"heading_level,omitempty"`
}

// BoundarySource identifies which detector produced a boundary candidate.
type BoundarySource string

// Boundary candidate sources.
const (
	BoundaryWindowSimilarity BoundarySource = "window_similarity"
	BoundaryCoherenceBreak   BoundarySource = "coherence_break"
	BoundaryTopicShift       BoundarySource = "topic_shift"
	BoundaryLexicalCohesion  BoundarySource = "lexical_cohesion"
	BoundaryMerged           BoundarySource = "merged"
)

// BoundaryCandidate is a position between two units where a chunk may end.
// Position p denotes the seam between units p-1 and p. Candidates produced at
// the same position by different detectors are merged into one weighted score.
type BoundaryCandidate struct {
	Position  int            `json:"position"`
	Score     float64        `json:"score"`
	Source    BoundarySource `json:"source"`
	Rationale string         `json:"rationale,omitempty"`
}

// WarningCode identifies a recoverable condition absorbed during chunking.
type WarningCode string

// Warning codes attached to chunk metadata or the document structure.
const (
	WarnEmptyInput           WarningCode = "empty_input"
	WarnEmbeddingUnavailable WarningCode = "embedding_unavailable"
	WarnOversizedChunk       WarningCode = "oversized_chunk"
	WarnEmergencySplit       WarningCode = "emergency_split"
)

// Warning records a recoverable condition together with a human-readable
// explanation. Warnings never abort the pipeline; they let downstream
// consumers decide how much to trust the affected chunk.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// ChunkMetadata carries the descriptive and structural metadata of a chunk.
type ChunkMetadata struct {
	ChunkID          string   `json:"chunk_id"`
	DocumentID       string   `json:"document_id"`
	ChunkType        string   `json:"chunk_type"`
	Level            int      `json:"level"`
	Position         int      `json:"position"`
	ParentChunkID    string   `json:"parent_chunk_id,omitempty"`
	ChildrenChunkIDs []string `json:"children_chunk_ids,omitempty"`

	// StartOffset and EndOffset delimit the chunk's own span in the source
	// text, excluding any overlap prefix copied from the previous chunk.
	StartOffset  int `json:"start_offset"`
	EndOffset    int `json:"end_offset"`
	OverlapUnits int `json:"overlap_units,omitempty"`
	TokenSize    int `json:"token_size"`

	SemanticScore   float64 `json:"semantic_score"`
	CoherenceScore  float64 `json:"coherence_score"`
	ImportanceScore float64 `json:"importance_score"`

	Keywords []string `json:"keywords,omitempty"`
	Entities []string `json:"entities,omitempty"`
	Topics   []string `json:"topics,omitempty"`

	Warnings []Warning `json:"warnings,omitempty"`
}

// DocumentChunk is a context-preserving segment of a document. Content is the
// concatenated unit text of the chunk's span, prefixed by any declared overlap
// from the previous chunk. Relationships maps related chunk ids to similarity
// weights.
type DocumentChunk struct {
	ChunkID       string             `json:"chunk_id"`
	Content       string             `json:"content"`
	Metadata      ChunkMetadata      `json:"metadata"`
	Embedding     []float32          `json:"embedding,omitempty"`
	Relationships map[string]float64 `json:"relationships,omitempty"`
}

// DocumentStructure is the final output of a chunking call: ordered chunks,
// their hierarchy, and document-level summary metadata. It is never mutated
// after being returned; consumers that need updates must re-run chunking.
type DocumentStructure struct {
	DocumentID string          `json:"document_id"`
	Chunks     []DocumentChunk `json:"chunks"`
	// Hierarchy maps each chunk id to the ordered list of its descendant
	// chunk ids, depth first.
	Hierarchy       map[string][]string `json:"hierarchy,omitempty"`
	GlobalTopics    []string            `json:"global_topics,omitempty"`
	DocumentSummary string              `json:"document_summary,omitempty"`
	KnowledgeGraph  *KnowledgeGraph     `json:"knowledge_graph,omitempty"`
	Warnings        []Warning           `json:"warnings,omitempty"`
}

// GraphNodeType classifies a knowledge graph node.
type GraphNodeType string

// Knowledge graph node types.
const (
	GraphNodeChunk   GraphNodeType = "chunk"
	GraphNodeEntity  GraphNodeType = "entity"
	GraphNodeConcept GraphNodeType = "concept"
)

// GraphNode represents a chunk, entity, or concept in the knowledge graph.
type GraphNode struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       GraphNodeType `json:"type"`
	ChunkIDs   []string      `json:"chunk_ids,omitempty"`
	Confidence float64       `json:"confidence"`
}

// GraphEdgeType classifies a knowledge graph edge.
type GraphEdgeType string

// Knowledge graph edge types.
const (
	GraphEdgeSemanticSimilarity GraphEdgeType = "semantic_similarity"
	GraphEdgeHierarchy          GraphEdgeType = "hierarchy"
	GraphEdgeCoOccurrence       GraphEdgeType = "co_occurrence"
	GraphEdgeMention            GraphEdgeType = "mention"
)

// GraphEdge represents a weighted, typed connection between two graph nodes.
type GraphEdge struct {
	SourceID   string        `json:"source_id"`
	TargetID   string        `json:"target_id"`
	Type       GraphEdgeType `json:"type"`
	Weight     float64       `json:"weight"`
	Confidence float64       `json:"confidence"`
}

// KnowledgeGraph holds the entity and concept nodes extracted from a document
// structure together with their typed relationships.
type KnowledgeGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
