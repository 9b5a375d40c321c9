package storage

import (
	"fmt"
	"strings"

	kuzu "github.com/kuzudb/go-kuzu"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

// Kuzu provides an embedded Kuzu implementation of the GraphStorage
// interface. It handles database connections and operations for storing and
// retrieving knowledge graph nodes and edges.
type Kuzu struct {
	DB   *kuzu.Database
	Conn *kuzu.Connection
}

// NewKuzu creates a new Kuzu client connection with the provided database
// path. It returns an initialized Kuzu struct and any error encountered
// during setup. The returned Kuzu instance must be closed with Close() when
// no longer needed.
func NewKuzu(dbPath string, systemConfig kuzu.SystemConfig) (Kuzu, error) {
	db, err := kuzu.OpenDatabase(dbPath, systemConfig)
	if err != nil {
		return Kuzu{}, fmt.Errorf("failed to create kuzu database: %w", err)
	}

	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close() // Clean up the database if connection fails
		return Kuzu{}, fmt.Errorf("failed to create kuzu connection: %w", err)
	}

	k := Kuzu{DB: db, Conn: conn}

	if err := k.SetupSchema(); err != nil {
		// Clean up both on schema failure
		conn.Close()
		db.Close()
		return Kuzu{}, fmt.Errorf("failed to set up schema: %w", err)
	}

	return k, nil
}

// SetupSchema defines and creates the necessary node and relationship tables
// in Kuzu. This is idempotent; it will not fail if the tables already exist.
func (k Kuzu) SetupSchema() error {
	// Define the node table. node_id is the primary key.
	nodeTableQuery := `
    CREATE NODE TABLE IF NOT EXISTS base (
        node_id STRING,
        name STRING,
        node_type STRING,
        chunk_ids STRING,
        confidence DOUBLE,
        PRIMARY KEY (node_id)
    )`
	// Define the relationship table.
	relTableQuery := `
    CREATE REL TABLE IF NOT EXISTS RELATED (
        FROM base TO base,
        edge_type STRING,
        weight DOUBLE,
        confidence DOUBLE
    )`

	nodeStmt, err := k.Conn.Query(nodeTableQuery)
	if err != nil {
		return fmt.Errorf("failed to execute create base node table: %w", err)
	}
	defer nodeStmt.Close()

	relStmt, err := k.Conn.Query(relTableQuery)
	if err != nil {
		return fmt.Errorf("failed to execute create rel table: %w", err)
	}
	defer relStmt.Close()

	return nil
}

func graphNodeFromMap(props map[string]any) gosemchunk.GraphNode {
	id, _ := props["node_id"].(string)
	name, _ := props["name"].(string)
	typ, _ := props["node_type"].(string)
	chunkIDs, _ := props["chunk_ids"].(string)
	confidence, _ := props["confidence"].(float64)

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

// GraphUpsertNode creates or updates a knowledge graph node in the Kuzu
// database.
func (k Kuzu) GraphUpsertNode(node gosemchunk.GraphNode) error {
	query := `
MERGE (n:base {node_id: $node_id})
ON CREATE SET n.name = $name, n.node_type = $node_type, n.chunk_ids = $chunk_ids, n.confidence = $confidence
ON MATCH SET n.name = $name, n.node_type = $node_type, n.chunk_ids = $chunk_ids, n.confidence = $confidence
`
	params := map[string]any{
		"node_id":    node.ID,
		"name":       node.Name,
		"node_type":  string(node.Type),
		"chunk_ids":  strings.Join(node.ChunkIDs, chunkIDSeparator),
		"confidence": node.Confidence,
	}
	prepped, err := k.Conn.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare GraphUpsertNode: %w", err)
	}
	_, err = k.Conn.Execute(prepped, params)
	return err
}

// GraphUpsertEdge creates or updates an edge between two nodes in the Kuzu
// database. Kuzu relationships are directed, so the edge is written in both
// directions to behave as undirected on read.
func (k Kuzu) GraphUpsertEdge(edge gosemchunk.GraphEdge) error {
	query := `
MATCH (source:base {node_id: $source_id})
WITH source
MATCH (target:base {node_id: $target_id})
MERGE (source)-[r:RELATED {edge_type: $edge_type}]->(target)
ON CREATE SET r.weight = $weight, r.confidence = $confidence
ON MATCH SET r.weight = $weight, r.confidence = $confidence
MERGE (target)-[r2:RELATED {edge_type: $edge_type}]->(source)
ON CREATE SET r2.weight = $weight, r2.confidence = $confidence
ON MATCH SET r2.weight = $weight, r2.confidence = $confidence
`
	params := map[string]any{
		"source_id":  edge.SourceID,
		"target_id":  edge.TargetID,
		"edge_type":  string(edge.Type),
		"weight":     edge.Weight,
		"confidence": edge.Confidence,
	}
	prepped, err := k.Conn.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare GraphUpsertEdge: %w", err)
	}
	_, err = k.Conn.Execute(prepped, params)
	return err
}

// GraphNode retrieves a knowledge graph node by id from the Kuzu database.
// It returns gosemchunk.ErrNodeNotFound when the id is unknown.
func (k Kuzu) GraphNode(id string) (gosemchunk.GraphNode, error) {
	query := `MATCH (n:base {node_id: $nodeID}) RETURN n`
	params := map[string]any{"nodeID": id}
	prepped, err := k.Conn.Prepare(query)
	if err != nil {
		return gosemchunk.GraphNode{}, fmt.Errorf("failed to prepare GraphNode: %w", err)
	}
	queryResult, err := k.Conn.Execute(prepped, params)
	if err != nil {
		return gosemchunk.GraphNode{}, fmt.Errorf("failed to run GraphNode query: %w", err)
	}
	defer queryResult.Close()

	if !queryResult.HasNext() {
		return gosemchunk.GraphNode{}, gosemchunk.ErrNodeNotFound
	}
	row, err := queryResult.Next()
	if err != nil {
		return gosemchunk.GraphNode{}, fmt.Errorf("failed to get GraphNode result row: %w", err)
	}

	nodeVal, err := row.GetValue(0)
	if err != nil {
		return gosemchunk.GraphNode{}, fmt.Errorf("failed to get GraphNode node value: %w", err)
	}
	node, ok := nodeVal.(kuzu.Node)
	if !ok {
		return gosemchunk.GraphNode{}, fmt.Errorf("invalid node type, got %T, want kuzu.Node", nodeVal)
	}
	return graphNodeFromMap(node.Properties), nil
}

// GraphRelatedNodes retrieves all nodes that share an edge with the
// specified node.
func (k Kuzu) GraphRelatedNodes(id string) ([]gosemchunk.GraphNode, error) {
	query := `
MATCH (n:base {node_id: $node_id})-[r:RELATED]-(connected:base)
RETURN DISTINCT connected
`
	params := map[string]any{"node_id": id}
	prepped, err := k.Conn.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare GraphRelatedNodes: %w", err)
	}
	queryResult, err := k.Conn.Execute(prepped, params)
	if err != nil {
		return nil, fmt.Errorf("failed to run GraphRelatedNodes query: %w", err)
	}
	defer queryResult.Close()

	related := make([]gosemchunk.GraphNode, 0)
	for queryResult.HasNext() {
		row, err := queryResult.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get GraphRelatedNodes result row: %w", err)
		}
		nodeVal, err := row.GetValue(0)
		if err != nil {
			continue
		}
		node, ok := nodeVal.(kuzu.Node)
		if !ok {
			continue
		}
		related = append(related, graphNodeFromMap(node.Properties))
	}

	return related, nil
}

// Close releases the Kuzu connection and database handles.
func (k Kuzu) Close() {
	k.Conn.Close()
	k.DB.Close()
}
