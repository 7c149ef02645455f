package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"policy-rag/internal/config"
	"policy-rag/internal/generation"
	"policy-rag/internal/http"
	"policy-rag/internal/llm"
	"policy-rag/internal/retrieval"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers advertising policy compliance questions with citations
// into an indexed corpus of policy documents.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Policy RAG API
//   description: |
//     Retrieval-augmented API for advertising policy compliance questions.
//     Answers are grounded in indexed policy documents and cite the exact
//     policy sections they rely on.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
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
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

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

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
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

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(
		cfg.LLMBaseURL,
		cfg.LLMAPIKey,
		cfg.LLMModelName,
		time.Duration(cfg.LLMTimeoutSeconds)*time.Second,
	)

	// Build the answer pipeline
	retriever := retrieval.NewHybridRetriever(embedder, vectorStore, cfg.QdrantCollection, chunkRepo)
	orchestrator := generation.NewOrchestrator(retriever, llmClient)
	slog.Info("Answer pipeline initialized", "model", cfg.LLMModelName)

	// Create router with dependencies
	deps := &http.Deps{
		Answers:    orchestrator,
		Database:   db,
		Vectors:    vectorStore,
		LLM:        llmClient,
		Collection: cfg.QdrantCollection,
	}
	router := http.NewRouter(deps)

	srv := &nethttp.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Must outlast the LLM completion timeout
		WriteTimeout: time.Duration(cfg.LLMTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", srv.Addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
