package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gosemchunk "github.com/MegaGrindStone/go-sem-chunk"
	"github.com/MegaGrindStone/go-sem-chunk/embedder"
	"github.com/MegaGrindStone/go-sem-chunk/storage"
	"github.com/MegaGrindStone/go-sem-chunk/strategy"
	"github.com/cespare/xxhash"
	"github.com/philippgille/chromem-go"
	"gopkg.in/yaml.v2"
)

type config struct {
	Neo4JURI      string `yaml:"neo4j_uri"`
	Neo4JUser     string `yaml:"neo4j_user"`
	Neo4JPassword string `yaml:"neo4j_password"`

	OpenAIAPIKey         string `yaml:"openai_api_key"`
	OpenAIEmbeddingModel string `yaml:"openai_embedding_model"`

	Chunking gosemchunk.Config `yaml:"chunking"`

	LogLevel string `yaml:"log_level"`
}

type storageWrapper struct {
	storage.Bolt
	storage.Chromem
	storage.Neo4J
}

const (
	docPath    = "book.txt"
	configPath = "config.yaml"
)

func main() {
	// Load configuration from YAML file
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		return
	}

	// Set log level based on configuration
	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	embeddingModel := cfg.OpenAIEmbeddingModel
	if embeddingModel == "" {
		embeddingModel = string(chromem.EmbeddingModelOpenAI3Small)
	}
	emb := embedder.NewOpenAI(cfg.OpenAIAPIKey, embeddingModel, logger)

	graphDB, err := storage.NewNeo4J(cfg.Neo4JURI, cfg.Neo4JUser, cfg.Neo4JPassword)
	if err != nil {
		fmt.Printf("Error creating neo4jDB: %v\n", err)
		return
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*30)
		defer closeCancel()

		if err := graphDB.Close(closeCtx); err != nil {
			fmt.Printf("Error closing neo4jDB: %v\n", err)
		}
	}()

	vecDB, err := storage.NewChromem("vec.db", 5, embedder.ChromemFunc(emb))
	if err != nil {
		fmt.Printf("Error creating chromemDB: %v\n", err)
		return
	}

	kvDB, err := storage.NewBolt("kv.db")
	if err != nil {
		fmt.Printf("Error creating boltDB: %v\n", err)
		return
	}

	store := storageWrapper{
		Bolt:    kvDB,
		Chromem: vecDB,
		Neo4J:   graphDB,
	}

	fileData, err := os.ReadFile(docPath)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		return
	}
	docContent := string(fileData)

	// The document id doubles as a content fingerprint, so re-running the
	// example on an unchanged file reuses the stored structure.
	docID := fmt.Sprintf("book-%016x", xxhash.Sum64String(docContent))

	structure, err := store.StructureGet(docID)
	if err != nil {
		fmt.Printf("The document is not in the store. Chunking...\n")
		structure, err = chunk(docID, docContent, emb, cfg.Chunking, store, logger)
		if err != nil {
			fmt.Printf("Error chunking document: %v\n", err)
			return
		}
	}

	printSummary(structure)

	// Start the query loop
	query(structure, store, logger)
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &cfg, nil
}

func chunk(
	docID, docContent string,
	emb gosemchunk.Embedder,
	cfg gosemchunk.Config,
	store gosemchunk.Storage,
	logger *slog.Logger,
) (gosemchunk.DocumentStructure, error) {
	now := time.Now()
	defer func() {
		logger.Info("Chunked document", "duration in milliseconds", time.Since(now).Milliseconds())
	}()

	strat, err := strategy.ForConfig(cfg)
	if err != nil {
		return gosemchunk.DocumentStructure{}, fmt.Errorf("error selecting strategy: %w", err)
	}

	doc := gosemchunk.Document{
		ID:      docID,
		Content: docContent,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	structure, err := gosemchunk.ChunkDocument(ctx, doc, strat, emb, cfg, logger)
	if err != nil {
		return gosemchunk.DocumentStructure{}, fmt.Errorf("error chunking document: %w", err)
	}

	if err := gosemchunk.Persist(structure, store, logger); err != nil {
		return gosemchunk.DocumentStructure{}, fmt.Errorf("error persisting structure: %w", err)
	}

	return structure, nil
}

func printSummary(structure gosemchunk.DocumentStructure) {
	fmt.Printf("\nDocument %s: %d chunks\n", structure.DocumentID, len(structure.Chunks))
	if structure.DocumentSummary != "" {
		fmt.Printf("Summary: %s\n", structure.DocumentSummary)
	}
	if len(structure.GlobalTopics) > 0 {
		fmt.Printf("Topics: %s\n", strings.Join(structure.GlobalTopics, ", "))
	}
	for _, warning := range structure.Warnings {
		fmt.Printf("Warning: %s: %s\n", warning.Code, warning.Message)
	}
	fmt.Println()
}

func query(structure gosemchunk.DocumentStructure, store storageWrapper, logger *slog.Logger) {
	index := make(map[string]gosemchunk.DocumentChunk, len(structure.Chunks))
	for _, chunk := range structure.Chunks {
		index[chunk.ChunkID] = chunk
	}

	for {
		fmt.Println("Insert query: (type 'exit' to exit)")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("Error reading input: %v\n", err)
			return
		}
		line = strings.TrimSpace(line)

		if line == "exit" {
			fmt.Println("Exiting...")
			return
		}

		logger.Info("User query", "query", line)

		now := time.Now()

		ids, err := store.VectorQueryChunks(line)
		if err != nil {
			fmt.Printf("Error querying: %v\n", err)
			return
		}

		logger.Info("Queried chunks", "count", len(ids),
			"duration in milliseconds", time.Since(now).Milliseconds())

		if len(ids) == 0 {
			fmt.Println("\nNo matching chunks.")
			continue
		}

		fmt.Println("\nMatching chunks:")
		for _, id := range ids {
			chunk, ok := index[id]
			if !ok {
				continue
			}
			fmt.Printf("--- %s (type=%s, coherence=%.2f)\n%s\n",
				chunk.ChunkID, chunk.Metadata.ChunkType, chunk.Metadata.CoherenceScore,
				strings.TrimSpace(chunk.Content))
		}
		fmt.Println()
	}
}
