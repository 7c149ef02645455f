package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"policy-rag/internal/config"
	"policy-rag/internal/indexer"
	"policy-rag/internal/llm"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

func main() {
	dir := flag.String("dir", "./docs", "directory of policy documents (.md with .yaml manifest sidecars)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// Stop cleanly between documents on Ctrl-C
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	chunkRepo := storage.NewChunkRepo(db)

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(
		cfg.EmbeddingBaseURL,
		cfg.LLMAPIKey,
		cfg.EmbeddingModelName,
		cfg.QdrantVectorSize,
		time.Duration(cfg.EmbeddingTimeoutSeconds)*time.Second,
	)
	testEmbedding, err := embedder.EmbedText(ctx, "test")
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbedding) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbedding))
	}
	slog.Info("Embedding client validated", "model", cfg.EmbeddingModelName, "vector_size", cfg.QdrantVectorSize)

	pipeline := indexer.NewPipeline(chunkRepo, embedder, vectorStore, cfg.QdrantCollection)

	stats, err := pipeline.IndexAll(ctx, *dir)
	if err != nil {
		slog.Error("Ingestion finished with errors", "error", err,
			"docs_indexed", stats.DocsIndexed,
			"docs_failed", stats.DocsFailed,
		)
		os.Exit(1)
	}

	coverage, err := pipeline.GetCoverageStats(ctx, cfg.EmbeddingModelName)
	if err != nil {
		log.Fatalf("Failed to compute coverage stats: %v", err)
	}
	slog.Info("Index coverage",
		"docs_indexed", coverage.DocsIndexed,
		"chunks_indexed", coverage.ChunksIndexed,
		"chunks_by_region", coverage.ChunksByRegion,
		"chunks_by_content_type", coverage.ChunksByContentType,
		"token_min", coverage.ChunkTokenStats.Min,
		"token_max", coverage.ChunkTokenStats.Max,
		"token_mean", coverage.ChunkTokenStats.Mean,
		"token_p95", coverage.ChunkTokenStats.P95,
		"chunker_version", coverage.ChunkerVersion,
		"index_version", coverage.IndexVersion,
	)

	info, err := vectorStore.GetCollectionInfo(ctx, cfg.QdrantCollection)
	if err != nil {
		log.Fatalf("Failed to read collection info: %v", err)
	}
	slog.Info("Collection status",
		"collection", cfg.QdrantCollection,
		"points", info.PointsCount,
		"vector_size", info.VectorSize,
		"status", info.Status,
	)
}
