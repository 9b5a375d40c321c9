package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
)

const redisStructurePrefix = "structure:"

// Redis provides a Redis implementation of the StructureStorage interface.
// It handles database operations for storing and retrieving assembled
// document structures as JSON.
type Redis struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client connection with the provided
// configuration. It returns an initialized Redis struct and any error
// encountered during connection setup.
func NewRedis(addr, password string, db int) (Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return Redis{}, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return Redis{
		Client: client,
	}, nil
}

// StructurePut creates or updates a document structure in the Redis database,
// keyed by document id.
func (r Redis) StructurePut(structure gosemchunk.DocumentStructure) error {
	data, err := json.Marshal(structure)
	if err != nil {
		return fmt.Errorf("failed to marshal structure: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.Client.Set(ctx, redisStructurePrefix+structure.DocumentID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set structure: %w", err)
	}

	return nil
}

// StructureGet retrieves a document structure by document id from the Redis
// database. It returns gosemchunk.ErrStructureNotFound when the id is
// unknown.
func (r Redis) StructureGet(documentID string) (gosemchunk.DocumentStructure, error) {
	var result gosemchunk.DocumentStructure

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := r.Client.Get(ctx, redisStructurePrefix+documentID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result, fmt.Errorf("%w: %s", gosemchunk.ErrStructureNotFound, documentID)
		}
		return result, fmt.Errorf("failed to get structure: %w", err)
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal structure: %w", err)
	}

	return result, nil
}
