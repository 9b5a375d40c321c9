package gosemchunk

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Graph node id namespaces. SHA1-based UUIDs keep ids stable across runs for
// the determinism guarantee.
const (
	graphChunkPrefix   = "chunk:"
	graphEntityPrefix  = "entity:"
	graphConceptPrefix = "concept:"
)

const (
	coOccurrenceConfidence = 0.8
	conceptConfidence      = 0.7
	entityBaseConfidence   = 0.5
	entityMentionBonus     = 0.1
)

// BuildKnowledgeGraph derives a document-local knowledge graph from an
// assembled structure: one node per chunk, entity, and global topic, with
// hierarchy, mention, co-occurrence, and semantic-similarity edges. Node ids
// are deterministic, so rebuilding the graph for the same structure yields
// byte-identical output.
func BuildKnowledgeGraph(structure DocumentStructure, cfg Config) *KnowledgeGraph {
	graph := &KnowledgeGraph{}

	chunkNodeID := make(map[string]string, len(structure.Chunks))
	for _, chunk := range structure.Chunks {
		id := graphNodeID(graphChunkPrefix + chunk.ChunkID)
		chunkNodeID[chunk.ChunkID] = id
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:         id,
			Name:       chunk.ChunkID,
			Type:       GraphNodeChunk,
			ChunkIDs:   []string{chunk.ChunkID},
			Confidence: 1,
		})
	}

	// Hierarchy edges follow the parent references so each edge appears once.
	for _, chunk := range structure.Chunks {
		parent := chunk.Metadata.ParentChunkID
		if parent == "" {
			continue
		}
		if parentNode, ok := chunkNodeID[parent]; ok {
			graph.Edges = append(graph.Edges, GraphEdge{
				SourceID:   parentNode,
				TargetID:   chunkNodeID[chunk.ChunkID],
				Type:       GraphEdgeHierarchy,
				Weight:     1,
				Confidence: 1,
			})
		}
	}

	for i, chunk := range structure.Chunks {
		for j := i + 1; j < len(structure.Chunks); j++ {
			other := structure.Chunks[j]
			sim, ok := chunk.Relationships[other.ChunkID]
			if !ok {
				continue
			}
			graph.Edges = append(graph.Edges, GraphEdge{
				SourceID:   chunkNodeID[chunk.ChunkID],
				TargetID:   chunkNodeID[other.ChunkID],
				Type:       GraphEdgeSemanticSimilarity,
				Weight:     sim,
				Confidence: sim,
			})
		}
	}

	if cfg.ExtractEntities {
		addEntityNodes(graph, structure, chunkNodeID)
	}
	addConceptNodes(graph, structure, chunkNodeID)

	return graph
}

// addEntityNodes creates one node per distinct entity mention (case
// insensitive, first spelling wins), a mention edge to every chunk citing it,
// and co-occurrence edges between entities sharing a chunk.
func addEntityNodes(graph *KnowledgeGraph, structure DocumentStructure, chunkNodeID map[string]string) {
	type entityRecord struct {
		name     string
		chunkIDs []string
	}
	var order []string
	records := make(map[string]*entityRecord)
	for _, chunk := range structure.Chunks {
		for _, entity := range chunk.Metadata.Entities {
			key := strings.ToLower(entity)
			record, ok := records[key]
			if !ok {
				record = &entityRecord{name: entity}
				records[key] = record
				order = append(order, key)
			}
			record.chunkIDs = appendIfUnique(record.chunkIDs, chunk.ChunkID)
		}
	}

	entityNodeID := make(map[string]string, len(order))
	for _, key := range order {
		record := records[key]
		id := graphNodeID(graphEntityPrefix + key)
		entityNodeID[key] = id
		confidence := clamp01(entityBaseConfidence + entityMentionBonus*float64(len(record.chunkIDs)))
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:         id,
			Name:       record.name,
			Type:       GraphNodeEntity,
			ChunkIDs:   record.chunkIDs,
			Confidence: confidence,
		})
		for _, chunkID := range record.chunkIDs {
			graph.Edges = append(graph.Edges, GraphEdge{
				SourceID:   id,
				TargetID:   chunkNodeID[chunkID],
				Type:       GraphEdgeMention,
				Weight:     1,
				Confidence: confidence,
			})
		}
	}

	// Co-occurrence counts chunks where both entities appear.
	shared := make(map[[2]string]int)
	for _, chunk := range structure.Chunks {
		keys := make([]string, 0, len(chunk.Metadata.Entities))
		for _, entity := range chunk.Metadata.Entities {
			keys = appendIfUnique(keys, strings.ToLower(entity))
		}
		sort.Strings(keys)
		for i := range keys {
			for j := i + 1; j < len(keys); j++ {
				shared[[2]string{keys[i], keys[j]}]++
			}
		}
	}
	pairs := make([][2]string, 0, len(shared))
	for pair := range shared {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, pair := range pairs {
		count := shared[pair]
		graph.Edges = append(graph.Edges, GraphEdge{
			SourceID:   entityNodeID[pair[0]],
			TargetID:   entityNodeID[pair[1]],
			Type:       GraphEdgeCoOccurrence,
			Weight:     clamp01(float64(count) / float64(len(structure.Chunks))),
			Confidence: coOccurrenceConfidence,
		})
	}
}

// addConceptNodes lifts the document's global topics into concept nodes with
// mention edges to the chunks carrying each topic.
func addConceptNodes(graph *KnowledgeGraph, structure DocumentStructure, chunkNodeID map[string]string) {
	for _, topic := range structure.GlobalTopics {
		var chunkIDs []string
		for _, chunk := range structure.Chunks {
			for _, chunkTopic := range chunk.Metadata.Topics {
				if strings.EqualFold(chunkTopic, topic) {
					chunkIDs = append(chunkIDs, chunk.ChunkID)
					break
				}
			}
		}
		if len(chunkIDs) == 0 {
			continue
		}
		id := graphNodeID(graphConceptPrefix + strings.ToLower(topic))
		graph.Nodes = append(graph.Nodes, GraphNode{
			ID:         id,
			Name:       topic,
			Type:       GraphNodeConcept,
			ChunkIDs:   chunkIDs,
			Confidence: conceptConfidence,
		})
		for _, chunkID := range chunkIDs {
			graph.Edges = append(graph.Edges, GraphEdge{
				SourceID:   id,
				TargetID:   chunkNodeID[chunkID],
				Type:       GraphEdgeMention,
				Weight:     1,
				Confidence: conceptConfidence,
			})
		}
	}
}

func graphNodeID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
