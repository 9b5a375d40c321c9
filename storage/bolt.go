package storage

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

const structuresBucket = "structures"

// Bolt provides a BoltDB implementation of the StructureStorage interface.
// It handles database operations for storing and retrieving assembled
// document structures as JSON.
type Bolt struct {
	DB *bolt.DB
}

// NewBolt creates a new BoltDB client connection with the provided file path.
// It returns an initialized Bolt struct and any error encountered during
// database setup. The function ensures that required buckets exist in the
// database.
func NewBolt(path string) (Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return Bolt{}, fmt.Errorf("failed to open bolt database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(structuresBucket))
		return err
	}); err != nil {
		return Bolt{}, fmt.Errorf("failed to create structures bucket: %w", err)
	}

	return Bolt{DB: db}, nil
}

// StructurePut creates or updates a document structure in the BoltDB
// database, keyed by document id.
func (b Bolt) StructurePut(structure gosemchunk.DocumentStructure) error {
	data, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("failed to marshal structure: %w", err)
	}

	return b.DB.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(structuresBucket))
		if bkt == nil {
			return fmt.Errorf("bucket not found")
		}

		if err := bkt.Put([]byte(structure.DocumentID), data); err != nil {
			return fmt.Errorf("failed to put structure: %w", err)
		}

		return nil
	})
}

// StructureGet retrieves a document structure by document id from the BoltDB
// database. It returns gosemchunk.ErrStructureNotFound when the id is
// unknown.
func (b Bolt) StructureGet(documentID string) (gosemchunk.DocumentStructure, error) {
	var result gosemchunk.DocumentStructure

	err := b.DB.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(structuresBucket))

		data := bkt.Get([]byte(documentID))
		if data == nil {
			return fmt.Errorf("%w: %s", gosemchunk.ErrStructureNotFound, documentID)
		}

		if err := json.Unmarshal(data, &result); err != nil {
			return fmt.Errorf("failed to unmarshal structure: %w", err)
		}

		return nil
	})

	return result, err
}
