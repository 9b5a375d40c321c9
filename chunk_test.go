package gosemchunk_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
	"github.com/MegaGrindStone/go-sem-chunk/strategy"
)

// mockEmbedder projects each text onto a fixed vocabulary: dimension d counts
// the occurrences of vocab[d], plus a small constant dimension so no vector
// is ever zero. Deterministic by construction.
type mockEmbedder struct {
	vocab []string
	err   error

	embedCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.embedCalls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(m.vocab)+1)
		vec[len(m.vocab)] = 0.05
		lower := strings.ToLower(text)
		for d, word := range m.vocab {
			vec[d] = float32(strings.Count(lower, word))
		}
		out[i] = vec
	}
	return out, nil
}

func testEmbedder() *mockEmbedder {
	return &mockEmbedder{vocab: []string{
		"broth", "bread", "herb", "soup", "chef",
		"engine", "piston", "grease", "mechanic", "gear",
	}}
}

const pipelineDoc = `The chef stirred the broth gently while the kitchen warmed. Fresh herbs flavored the broth overnight in the cold room. The broth simmered beside loaves of warm bread. Warm bread paired nicely with the broth at supper. The pantry held jars of dried herbs ready for winter soups. Every soup began with the same patient broth.

The engine piston misfired badly on the first cold morning. Grease coated the piston housing after the long rebuild. The piston housing rattled loudly above the worn mounts. Mechanics tuned the engine carefully before the road test. The road test pushed the engine hard through every gear. Spare pistons waited in the parts drawer beside the bench.`

func pipelineConfig() gosemchunk.Config {
	cfg := gosemchunk.DefaultConfig()
	cfg.MaxChunkSize = 300
	cfg.MinChunkSize = 60
	// Whole sentences run around sixty characters; the overlap budget must
	// admit at least one of them.
	cfg.OverlapSize = 80
	// The mock embedder's vectors are coarser than a real model's, so seam
	// scores sit lower than they would in production.
	cfg.SemanticThreshold = 0.35
	return cfg
}

// assertChunkGeometry checks the offset and content contracts that every
// strategy must honor: chunks tile the source text with their own spans, the
// own span is a suffix of the chunk content, and sizes respect the limits
// unless a warning says otherwise.
func assertChunkGeometry(t *testing.T, content string, structure gosemchunk.DocumentStructure, cfg gosemchunk.Config) {
	t.Helper()

	pos := 0
	for i, chunk := range structure.Chunks {
		meta := chunk.Metadata
		if chunk.ChunkID != meta.ChunkID {
			t.Errorf("Chunk %d id %q differs from metadata id %q", i, chunk.ChunkID, meta.ChunkID)
		}
		if !strings.HasPrefix(chunk.ChunkID, "chunk-") {
			t.Errorf("Chunk %d id %q is not a stable id", i, chunk.ChunkID)
		}
		if meta.Position != i {
			t.Errorf("Chunk %d has position %d", i, meta.Position)
		}
		if meta.StartOffset != pos {
			t.Errorf("Chunk %d starts at %d, want %d", i, meta.StartOffset, pos)
		}
		if meta.EndOffset <= meta.StartOffset {
			t.Errorf("Chunk %d has empty span [%d,%d)", i, meta.StartOffset, meta.EndOffset)
		}

		own := content[meta.StartOffset:meta.EndOffset]
		if !strings.HasSuffix(chunk.Content, own) {
			t.Errorf("Chunk %d content does not end with its own span.\ncontent: %q\nspan:    %q",
				i, chunk.Content, own)
		}
		if meta.OverlapUnits == 0 && chunk.Content != own {
			t.Errorf("Chunk %d declares no overlap but content %q differs from span %q",
				i, chunk.Content, own)
		}
		if i == 0 && meta.OverlapUnits != 0 {
			t.Errorf("First chunk declares %d overlap units", meta.OverlapUnits)
		}

		if size := meta.EndOffset - meta.StartOffset; size > cfg.MaxChunkSize && !hasWarning(meta.Warnings) {
			t.Errorf("Chunk %d spans %d chars over the limit %d without a warning", i, size, cfg.MaxChunkSize)
		}
		if meta.TokenSize <= 0 {
			t.Errorf("Chunk %d has token size %d", i, meta.TokenSize)
		}
		pos = meta.EndOffset
	}
	if len(structure.Chunks) > 0 && pos != len(content) {
		t.Errorf("Chunks end at %d, want %d", pos, len(content))
	}
}

func hasWarning(warnings []gosemchunk.Warning) bool {
	return len(warnings) > 0
}

func TestChunkDocumentRoundTrip(t *testing.T) {
	cfg := pipelineConfig()
	doc := gosemchunk.Document{ID: "doc-roundtrip", Content: pipelineDoc}

	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if structure.DocumentID != doc.ID {
		t.Errorf("DocumentID = %q, want %q", structure.DocumentID, doc.ID)
	}
	if len(structure.Chunks) < 2 {
		t.Fatalf("Expected at least 2 chunks, got %d", len(structure.Chunks))
	}
	assertChunkGeometry(t, pipelineDoc, structure, cfg)

	overlapSeen := false
	for i, chunk := range structure.Chunks {
		meta := chunk.Metadata
		if meta.OverlapUnits > 0 {
			overlapSeen = true
			if len(chunk.Content) <= meta.EndOffset-meta.StartOffset {
				t.Errorf("Chunk %d declares overlap but carries none", i)
			}
		}
		for _, score := range []float64{meta.SemanticScore, meta.CoherenceScore, meta.ImportanceScore} {
			if gosemchunk.KnownScore(score) && (score < 0 || score > 1) {
				t.Errorf("Chunk %d carries score %v outside [0,1]", i, score)
			}
		}
		if chunk.Embedding == nil {
			t.Errorf("Chunk %d has no embedding despite a working embedder", i)
		}
	}
	if !overlapSeen {
		t.Error("Expected at least one chunk with an overlap prefix")
	}

	if len(structure.GlobalTopics) == 0 {
		t.Error("Expected global topics")
	}
	if structure.DocumentSummary == "" {
		t.Error("Expected a document summary")
	}
}

func TestChunkDocumentDeterminism(t *testing.T) {
	cfg := pipelineConfig()
	cfg.BuildGraph = true
	doc := gosemchunk.Document{ID: "doc-determinism", Content: pipelineDoc}

	first, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error on first run: %v", err)
	}
	second, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error on second run: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Two runs over the same input produced different structures")
	}
}

func TestChunkDocumentEmptyInput(t *testing.T) {
	for _, content := range []string{"", "   \n\t  \n"} {
		t.Run(fmt.Sprintf("%q", content), func(t *testing.T) {
			doc := gosemchunk.Document{ID: "doc-empty", Content: content}
			structure, err := gosemchunk.ChunkDocument(
				context.Background(), doc, strategy.Semantic{}, testEmbedder(), pipelineConfig(), nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(structure.Chunks) != 1 {
				t.Fatalf("Expected 1 chunk, got %d", len(structure.Chunks))
			}
			if !hasWarningCode(structure.Warnings, gosemchunk.WarnEmptyInput) {
				t.Error("Expected an empty input warning on the structure")
			}
			if !hasWarningCode(structure.Chunks[0].Metadata.Warnings, gosemchunk.WarnEmptyInput) {
				t.Error("Expected an empty input warning on the chunk")
			}
			if structure.Chunks[0].Content != content {
				t.Errorf("Chunk content = %q, want the raw input", structure.Chunks[0].Content)
			}
		})
	}
}

func hasWarningCode(warnings []gosemchunk.Warning, code gosemchunk.WarningCode) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestChunkDocumentConfigErrors(t *testing.T) {
	doc := gosemchunk.Document{ID: "doc-bad", Content: pipelineDoc}

	tests := []struct {
		name     string
		mutate   func(cfg *gosemchunk.Config)
		strategy gosemchunk.Strategy
		wantErr  error
	}{
		{
			name: "Min above max",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.MinChunkSize = cfg.MaxChunkSize + 1
			},
			strategy: strategy.Semantic{},
			wantErr:  gosemchunk.ErrConfiguration,
		},
		{
			name: "Unknown strategy name",
			mutate: func(cfg *gosemchunk.Config) {
				cfg.Strategy = "recursive"
			},
			strategy: strategy.Semantic{},
			wantErr:  gosemchunk.ErrUnknownStrategy,
		},
		{
			name:     "Nil strategy",
			mutate:   func(*gosemchunk.Config) {},
			strategy: nil,
			wantErr:  gosemchunk.ErrConfiguration,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := pipelineConfig()
			tc.mutate(&cfg)
			_, err := gosemchunk.ChunkDocument(
				context.Background(), doc, tc.strategy, testEmbedder(), cfg, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Expected error %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestChunkDocumentDegraded(t *testing.T) {
	tests := []struct {
		name     string
		embedder gosemchunk.Embedder
	}{
		{name: "No embedder", embedder: nil},
		{name: "Failing embedder", embedder: &mockEmbedder{err: errors.New("model offline")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := pipelineConfig()
			doc := gosemchunk.Document{ID: "doc-degraded", Content: pipelineDoc}

			structure, err := gosemchunk.ChunkDocument(
				context.Background(), doc, strategy.Semantic{}, tc.embedder, cfg, nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if !hasWarningCode(structure.Warnings, gosemchunk.WarnEmbeddingUnavailable) {
				t.Error("Expected an embedding unavailable warning")
			}
			if len(structure.Chunks) == 0 {
				t.Fatal("Expected chunks despite the missing embedder")
			}
			assertChunkGeometry(t, pipelineDoc, structure, cfg)
			for i, chunk := range structure.Chunks {
				if chunk.Embedding != nil {
					t.Errorf("Chunk %d carries an embedding without an embedder", i)
				}
				if gosemchunk.KnownScore(chunk.Metadata.SemanticScore) {
					t.Errorf("Chunk %d semantic score = %v, want unknown", i, chunk.Metadata.SemanticScore)
				}
				if gosemchunk.KnownScore(chunk.Metadata.CoherenceScore) {
					t.Errorf("Chunk %d coherence score = %v, want unknown", i, chunk.Metadata.CoherenceScore)
				}
			}
		})
	}
}

func TestChunkDocumentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := gosemchunk.Document{ID: "doc-cancelled", Content: pipelineDoc}
	_, err := gosemchunk.ChunkDocument(ctx, doc, strategy.Semantic{}, testEmbedder(), pipelineConfig(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestChunkDocumentAbsorbForwardKeepsOverlap(t *testing.T) {
	// A short prose bridge between two code blocks: too small to stand
	// alone, too big to fold backward into the large block, so it merges
	// forward into the small one. The trailing block's overlap prefix
	// duplicated the bridge before the merge and must not survive it.
	codeA := "```\n" + strings.Repeat("total := total + addend\n", 16) + "```"
	codeB := "```\ny := 1\n```"
	content := codeA + "\nShort bridging note here.\n" + codeB

	bStart := strings.Index(content, codeB)
	hints := []gosemchunk.StructuralHint{
		{StartOffset: 0, EndOffset: len(codeA), Type: gosemchunk.StructuralCodeBlock},
		{StartOffset: bStart, EndOffset: bStart + len(codeB), Type: gosemchunk.StructuralCodeBlock},
	}

	cfg := pipelineConfig()
	cfg.Strategy = gosemchunk.StrategyAdaptive
	doc := gosemchunk.Document{ID: "doc-forward-merge", Content: content, Hints: hints}

	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Adaptive{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertChunkGeometry(t, content, structure, cfg)

	var merged *gosemchunk.DocumentChunk
	for i := range structure.Chunks {
		if strings.Contains(structure.Chunks[i].Content, "bridging note") {
			if merged != nil {
				t.Fatal("Bridge text appears in more than one chunk")
			}
			merged = &structure.Chunks[i]
		}
	}
	if merged == nil {
		t.Fatal("Expected a chunk carrying the bridge text")
	}
	if got := strings.Count(merged.Content, "Short bridging note here."); got != 1 {
		t.Errorf("Bridge text appears %d times in the merged chunk, want 1", got)
	}
	if !strings.Contains(merged.Content, "y := 1") {
		t.Error("Bridge did not merge forward into the small code block")
	}
	if merged.Metadata.ChunkType != "mixed" {
		t.Errorf("Merged prose and code chunk has type %q, want %q", merged.Metadata.ChunkType, "mixed")
	}

	// The big block kept whole above MaxChunkSize must say so.
	first := structure.Chunks[0]
	if size := first.Metadata.EndOffset - first.Metadata.StartOffset; size <= cfg.MaxChunkSize {
		t.Fatalf("First chunk spans %d chars, expected it over MaxChunkSize %d for this fixture",
			size, cfg.MaxChunkSize)
	}
	if !hasWarningCode(first.Metadata.Warnings, gosemchunk.WarnOversizedChunk) {
		t.Error("Oversized atomic chunk carries no oversized warning")
	}
	if !hasWarningCode(structure.Warnings, gosemchunk.WarnOversizedChunk) {
		t.Error("Oversized warning was not lifted onto the structure")
	}
}

func TestChunkDocumentMergePrefersContinuousNeighbor(t *testing.T) {
	// The bridge sentence shares one vocabulary word with the cooking block
	// but nearly all of its content words with the workshop block; the
	// undersized merge should follow the wording, not the embedding alone.
	codeA := "```\nchef := hire(chef)\nbroth := simmer(broth)\n```"
	codeB := "```\nhub := mount(flywheel, sprocket, axle)\nspin(hub)\n```"
	content := codeA + "\nThe chef saw the flywheel sprocket axle mount hub spin.\n" + codeB

	bStart := strings.Index(content, codeB)
	hints := []gosemchunk.StructuralHint{
		{StartOffset: 0, EndOffset: len(codeA), Type: gosemchunk.StructuralCodeBlock},
		{StartOffset: bStart, EndOffset: bStart + len(codeB), Type: gosemchunk.StructuralCodeBlock},
	}

	cfg := pipelineConfig()
	cfg.Strategy = gosemchunk.StrategyAdaptive
	cfg.OverlapSize = 0
	doc := gosemchunk.Document{ID: "doc-merge-continuity", Content: content, Hints: hints}

	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Adaptive{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertChunkGeometry(t, content, structure, cfg)

	var bridged *gosemchunk.DocumentChunk
	for i := range structure.Chunks {
		if strings.Contains(structure.Chunks[i].Content, "flywheel sprocket axle") {
			bridged = &structure.Chunks[i]
			break
		}
	}
	if bridged == nil {
		t.Fatal("Expected a chunk carrying the bridge text")
	}
	if !strings.Contains(bridged.Content, "spin(hub)") {
		t.Error("Bridge did not merge toward the chunk it reads continuously with")
	}
	if strings.Contains(bridged.Content, "simmer(broth)") {
		t.Error("Bridge merged backward despite weaker continuity")
	}
}

const hierarchicalDoc = `# Field Guide

This guide collects kitchen and workshop notes. Both trades reward patient routine.

## Cooking

The chef stirred the broth gently while the kitchen warmed. Fresh herbs flavored the broth overnight in the cold room. Warm bread paired nicely with the broth at supper.

## Engines

The engine piston misfired badly on the first cold morning. Grease coated the piston housing after the long rebuild. Mechanics tuned the engine carefully before the road test.`

func TestChunkDocumentHierarchy(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Strategy = gosemchunk.StrategyHierarchical
	cfg.OverlapSize = 0

	doc := gosemchunk.Document{ID: "doc-hierarchy", Content: hierarchicalDoc}
	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Hierarchical{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	byID := make(map[string]gosemchunk.DocumentChunk, len(structure.Chunks))
	for _, chunk := range structure.Chunks {
		byID[chunk.ChunkID] = chunk
	}

	headings := 0
	for _, chunk := range structure.Chunks {
		if chunk.Metadata.ChunkType == string(gosemchunk.StructuralHeading) {
			headings++
		}

		if parentID := chunk.Metadata.ParentChunkID; parentID != "" {
			parent, ok := byID[parentID]
			if !ok {
				t.Errorf("Chunk %s references missing parent %s", chunk.ChunkID, parentID)
				continue
			}
			if parent.Metadata.Level >= chunk.Metadata.Level {
				t.Errorf("Parent %s level %d not above child %s level %d",
					parentID, parent.Metadata.Level, chunk.ChunkID, chunk.Metadata.Level)
			}
			if !containsString(parent.Metadata.ChildrenChunkIDs, chunk.ChunkID) {
				t.Errorf("Parent %s does not list child %s", parentID, chunk.ChunkID)
			}
		}
		for _, childID := range chunk.Metadata.ChildrenChunkIDs {
			child, ok := byID[childID]
			if !ok {
				t.Errorf("Chunk %s references missing child %s", chunk.ChunkID, childID)
				continue
			}
			if child.Metadata.ParentChunkID != chunk.ChunkID {
				t.Errorf("Child %s points at parent %q, want %s",
					childID, child.Metadata.ParentChunkID, chunk.ChunkID)
			}
		}
	}
	if headings != 3 {
		t.Errorf("Expected 3 heading chunks, got %d", headings)
	}

	for parentID, descendants := range structure.Hierarchy {
		parent, ok := byID[parentID]
		if !ok {
			t.Errorf("Hierarchy lists unknown chunk %s", parentID)
			continue
		}
		for _, childID := range parent.Metadata.ChildrenChunkIDs {
			if !containsString(descendants, childID) {
				t.Errorf("Hierarchy for %s misses direct child %s", parentID, childID)
			}
		}
	}
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func TestChunkDocumentKnowledgeGraph(t *testing.T) {
	cfg := pipelineConfig()
	cfg.BuildGraph = true

	content := pipelineDoc + "\n\nChef Malika trained in Lyon before the bakery opened. " +
		"Mechanic Ortega keeps the workshop in Detroit running."
	doc := gosemchunk.Document{ID: "doc-graph", Content: content}

	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	graph := structure.KnowledgeGraph
	if graph == nil {
		t.Fatal("Expected a knowledge graph")
	}

	nodeByID := make(map[string]gosemchunk.GraphNode, len(graph.Nodes))
	chunkNodes := 0
	entityNodes := 0
	for _, node := range graph.Nodes {
		if _, dup := nodeByID[node.ID]; dup {
			t.Errorf("Duplicate node id %s", node.ID)
		}
		nodeByID[node.ID] = node
		switch node.Type {
		case gosemchunk.GraphNodeChunk:
			chunkNodes++
		case gosemchunk.GraphNodeEntity:
			entityNodes++
		}
		if node.Confidence < 0 || node.Confidence > 1 {
			t.Errorf("Node %s confidence %v outside [0,1]", node.ID, node.Confidence)
		}
	}
	if chunkNodes != len(structure.Chunks) {
		t.Errorf("Expected %d chunk nodes, got %d", len(structure.Chunks), chunkNodes)
	}
	if entityNodes == 0 {
		t.Error("Expected entity nodes for the named people")
	}

	for i, edge := range graph.Edges {
		if _, ok := nodeByID[edge.SourceID]; !ok {
			t.Errorf("Edge %d source %s has no node", i, edge.SourceID)
		}
		if _, ok := nodeByID[edge.TargetID]; !ok {
			t.Errorf("Edge %d target %s has no node", i, edge.TargetID)
		}
		if edge.Weight < 0 || edge.Weight > 1 {
			t.Errorf("Edge %d weight %v outside [0,1]", i, edge.Weight)
		}
	}
}

type mockPipelineStorage struct {
	structurePutErr error
	vectorErr       error
	nodeErr         error
	edgeErr         error

	structures   []gosemchunk.DocumentStructure
	chunkBatches [][]gosemchunk.DocumentChunk
	nodes        []gosemchunk.GraphNode
	edges        []gosemchunk.GraphEdge
}

func (m *mockPipelineStorage) StructurePut(structure gosemchunk.DocumentStructure) error {
	if m.structurePutErr != nil {
		return m.structurePutErr
	}
	m.structures = append(m.structures, structure)
	return nil
}

func (m *mockPipelineStorage) StructureGet(string) (gosemchunk.DocumentStructure, error) {
	return gosemchunk.DocumentStructure{}, gosemchunk.ErrStructureNotFound
}

func (m *mockPipelineStorage) VectorUpsertChunks(chunks []gosemchunk.DocumentChunk) error {
	if m.vectorErr != nil {
		return m.vectorErr
	}
	m.chunkBatches = append(m.chunkBatches, chunks)
	return nil
}

func (m *mockPipelineStorage) VectorQueryChunks(string) ([]string, error) {
	return nil, nil
}

func (m *mockPipelineStorage) GraphUpsertNode(node gosemchunk.GraphNode) error {
	if m.nodeErr != nil {
		return m.nodeErr
	}
	m.nodes = append(m.nodes, node)
	return nil
}

func (m *mockPipelineStorage) GraphUpsertEdge(edge gosemchunk.GraphEdge) error {
	if m.edgeErr != nil {
		return m.edgeErr
	}
	m.edges = append(m.edges, edge)
	return nil
}

func (m *mockPipelineStorage) GraphNode(string) (gosemchunk.GraphNode, error) {
	return gosemchunk.GraphNode{}, gosemchunk.ErrNodeNotFound
}

func (m *mockPipelineStorage) GraphRelatedNodes(string) ([]gosemchunk.GraphNode, error) {
	return nil, nil
}

func TestPersist(t *testing.T) {
	cfg := pipelineConfig()
	cfg.BuildGraph = true
	doc := gosemchunk.Document{ID: "doc-persist", Content: pipelineDoc}

	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store := &mockPipelineStorage{}
	if err := gosemchunk.Persist(structure, store, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(store.structures) != 1 {
		t.Fatalf("Expected 1 structure write, got %d", len(store.structures))
	}
	if len(store.chunkBatches) != 1 || len(store.chunkBatches[0]) != len(structure.Chunks) {
		t.Errorf("Expected one batch of %d chunks, got %+v batches", len(structure.Chunks), len(store.chunkBatches))
	}
	if len(store.nodes) != len(structure.KnowledgeGraph.Nodes) {
		t.Errorf("Expected %d node writes, got %d", len(structure.KnowledgeGraph.Nodes), len(store.nodes))
	}
	if len(store.edges) != len(structure.KnowledgeGraph.Edges) {
		t.Errorf("Expected %d edge writes, got %d", len(structure.KnowledgeGraph.Edges), len(store.edges))
	}
}

func TestPersistWithoutGraph(t *testing.T) {
	doc := gosemchunk.Document{ID: "doc-persist-nograph", Content: pipelineDoc}
	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), pipelineConfig(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	store := &mockPipelineStorage{}
	if err := gosemchunk.Persist(structure, store, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(store.nodes) != 0 || len(store.edges) != 0 {
		t.Errorf("Expected no graph writes, got %d nodes and %d edges", len(store.nodes), len(store.edges))
	}
}

func TestPersistPropagatesErrors(t *testing.T) {
	doc := gosemchunk.Document{ID: "doc-persist-err", Content: pipelineDoc}
	cfg := pipelineConfig()
	cfg.BuildGraph = true
	structure, err := gosemchunk.ChunkDocument(
		context.Background(), doc, strategy.Semantic{}, testEmbedder(), cfg, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantErr := errors.New("backend down")
	tests := []struct {
		name  string
		store *mockPipelineStorage
	}{
		{name: "Structure write fails", store: &mockPipelineStorage{structurePutErr: wantErr}},
		{name: "Vector write fails", store: &mockPipelineStorage{vectorErr: wantErr}},
		{name: "Node write fails", store: &mockPipelineStorage{nodeErr: wantErr}},
		{name: "Edge write fails", store: &mockPipelineStorage{edgeErr: wantErr}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := gosemchunk.Persist(structure, tc.store, nil); !errors.Is(err, wantErr) {
				t.Fatalf("Expected %v, got %v", wantErr, err)
			}
		})
	}
}
