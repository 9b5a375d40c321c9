// Package storage provides implementations of the go-sem-chunk storage
// interfaces over embedded and networked databases: BoltDB and Redis for
// document structures, chromem-go and Milvus for chunk vectors, Neo4j and
// Kuzu for knowledge graphs.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// chunkIDSeparator joins chunk id lists into a single string property, since
// not every graph backend stores string arrays.
const chunkIDSeparator = "<SEP>"

// Neo4J provides a Neo4j implementation of the GraphStorage interface. It
// handles database connections and operations for storing and retrieving
// knowledge graph nodes and edges.
type Neo4J struct {
	client neo4j.DriverWithContext
}

// NewNeo4J creates a new Neo4j client connection with the provided connection
// parameters. It returns an initialized Neo4J struct and any error
// encountered during connection setup. The returned Neo4J instance must be
// closed with Close() when no longer needed to free up resources.
func NewNeo4J(target, user, password string) (Neo4J, error) {
	driver, err := neo4j.NewDriverWithContext(
		target,
		neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return Neo4J{}, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return Neo4J{client: driver}, nil
}

func graphNodeFromNode(node dbtype.Node) gosemchunk.GraphNode {
	id, ok := node.Props["node_id"].(string)
	if !ok {
		id = ""
	}
	name, ok := node.Props["name"].(string)
	if !ok {
		name = ""
	}
	typ, ok := node.Props["node_type"].(string)
	if !ok {
		typ = ""
	}
	chunkIDs, ok := node.Props["chunk_ids"].(string)
	if !ok {
		chunkIDs = ""
	}
	confidence, ok := node.Props["confidence"].(float64)
	if !ok {
		confidence = 0
	}

	result := gosemchunk.GraphNode{
		ID:         id,
		Name:       name,
		Type:       gosemchunk.GraphNodeType(typ),
		Confidence: confidence,
	}
	if chunkIDs != "" {
		result.ChunkIDs = strings.Split(chunkIDs, chunkIDSeparator)
	}
	return result
}

// GraphUpsertNode creates or updates a knowledge graph node in the Neo4j
// database. It returns an error if the database operation fails.
func (n Neo4J) GraphUpsertNode(node gosemchunk.GraphNode) error {
	_, err := n.session(func(ctx context.Context, sess neo4j.SessionWithContext) (any, error) {
		return sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(
				ctx,
				fmt.Sprintf(`
MERGE (n:base {node_id: $properties.node_id})
SET n += $properties
SET n:%s`, "`"+string(node.Type)+"`"),
				map[string]any{
					"properties": map[string]any{
						"node_id":    node.ID,
						"name":       node.Name,
						"node_type":  string(node.Type),
						"chunk_ids":  strings.Join(node.ChunkIDs, chunkIDSeparator),
						"confidence": node.Confidence,
					},
				},
			)
		})
	})

	return err
}

// GraphUpsertEdge creates or updates an edge between two nodes in the Neo4j
// database. It returns an error if the database operation fails.
func (n Neo4J) GraphUpsertEdge(edge gosemchunk.GraphEdge) error {
	_, err := n.session(func(ctx context.Context, sess neo4j.SessionWithContext) (any, error) {
		return sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(
				ctx,
				`
MATCH (source:base {node_id: $source_id})
WITH source
MATCH (target:base {node_id: $target_id})
MERGE (source)-[r:RELATED {edge_type: $properties.edge_type}]-(target)
SET r += $properties
`,
				map[string]any{
					"source_id": edge.SourceID,
					"target_id": edge.TargetID,
					"properties": map[string]any{
						"edge_type":  string(edge.Type),
						"weight":     edge.Weight,
						"confidence": edge.Confidence,
					},
				},
			)
		})
	})

	return err
}

// GraphNode retrieves a knowledge graph node by id from the Neo4j database.
// It returns the found node or gosemchunk.ErrNodeNotFound if the node
// doesn't exist.
func (n Neo4J) GraphNode(id string) (gosemchunk.GraphNode, error) {
	res, err := n.session(func(ctx context.Context, sess neo4j.SessionWithContext) (any, error) {
		return sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			query := "MATCH (n:base {node_id: $nodeID}) RETURN n"
			queryRes, err := tx.Run(ctx, query, map[string]any{
				"nodeID": id,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to run query: %w", err)
			}

			node, err := queryRes.Single(ctx)
			if err != nil {
				return nil, gosemchunk.ErrNodeNotFound
			}
			return node, nil
		})
	})
	if err != nil {
		return gosemchunk.GraphNode{}, err
	}
	record, ok := res.(*db.Record)
	if !ok {
		return gosemchunk.GraphNode{}, fmt.Errorf("invalid result type, got %T, want *db.Record", res)
	}
	nNode, ok := record.Get("n")
	if !ok {
		return gosemchunk.GraphNode{}, fmt.Errorf("expected n key is not found")
	}
	node, ok := nNode.(dbtype.Node)
	if !ok {
		return gosemchunk.GraphNode{}, fmt.Errorf("invalid n type, got %T, want dbtype.Node", nNode)
	}

	return graphNodeFromNode(node), nil
}

// GraphRelatedNodes retrieves all nodes that share an edge with the
// specified node. It returns a slice of related nodes and any error
// encountered during the operation.
func (n Neo4J) GraphRelatedNodes(id string) ([]gosemchunk.GraphNode, error) {
	res, err := n.session(func(ctx context.Context, sess neo4j.SessionWithContext) (any, error) {
		return sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			query := `
MATCH (n:base {node_id: $node_id})
OPTIONAL MATCH (n)-[r]-(connected:base)
WHERE connected.node_id IS NOT NULL
RETURN n, r, connected`
			queryRes, err := tx.Run(ctx, query, map[string]any{
				"node_id": id,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to run query: %w", err)
			}

			nodes := make([]dbtype.Node, 0)
			for record, err := range queryRes.Records(ctx) {
				if err != nil {
					return nil, fmt.Errorf("failed to get result: %w", err)
				}

				r, ok := record.Get("connected")
				if !ok {
					return nil, fmt.Errorf("expected connected key is not found")
				}
				if r == nil {
					continue
				}
				connected, ok := r.(dbtype.Node)
				if !ok {
					return nil, fmt.Errorf("invalid result type, got %T, want dbtype.Node", r)
				}

				nodes = append(nodes, connected)
			}

			return nodes, nil
		})
	})
	if err != nil {
		return nil, err
	}
	nodes, ok := res.([]dbtype.Node)
	if !ok {
		return nil, fmt.Errorf("invalid result type: got %T, want []dbtype.Node", res)
	}

	related := make([]gosemchunk.GraphNode, 0)
	for _, node := range nodes {
		related = append(related, graphNodeFromNode(node))
	}

	return related, nil
}

// Close terminates the connection to the Neo4j database.
// It returns any error encountered during the closing operation.
func (n Neo4J) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

func (n Neo4J) session(sessFunc func(context.Context, neo4j.SessionWithContext) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	sess := n.client.NewSession(ctx, neo4j.SessionConfig{})
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*30)
		defer closeCancel()
		_ = sess.Close(closeCtx)
	}()

	trxCtx, trxCancel := context.WithTimeout(context.Background(), time.Second*30)
	defer trxCancel()

	return sessFunc(trxCtx, sess)
}
