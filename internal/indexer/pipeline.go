package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

// TextEmbedder generates embeddings for batches of chunk texts. This
// interface is defined from the pipeline's perspective (consumer-first).
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline orchestrates the ingestion of policy documents into SQLite
// and Qdrant.
type Pipeline struct {
	chunks     storage.ChunkStore
	embedder   TextEmbedder
	vectors    vectorstore.VectorIndex
	collection string
	chunker    *MarkdownChunker
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(chunks storage.ChunkStore, embedder TextEmbedder, vectors vectorstore.VectorIndex, collection string) *Pipeline {
	return &Pipeline{
		chunks:     chunks,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		chunker:    NewMarkdownChunker(),
	}
}

// IndexDocument ingests one markdown document with its manifest sidecar.
// Chunks from a previous ingest of the same document version are replaced.
func (p *Pipeline) IndexDocument(ctx context.Context, docPath string) (chunksIndexed, sectionsSkipped int, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	manifest, err := LoadManifest(manifestPathFor(docPath))
	if err != nil {
		return 0, 0, err
	}

	content, err := os.ReadFile(docPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read document %s: %w", docPath, err)
	}

	chunks, skipped, err := p.chunker.ChunkDocument(content)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to chunk document: %w", err)
	}

	docID := manifest.VersionedDocID()

	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks generated", "doc_id", docID, "path", docPath)
		return 0, skipped, nil
	}

	// Replace any previous ingest of this document version
	oldIDs, err := p.chunks.ListIDsByDoc(ctx, docID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list existing chunk IDs: %w", err)
	}
	if len(oldIDs) > 0 {
		if err := p.vectors.Delete(ctx, p.collection, oldIDs); err != nil {
			// Retrieval drops IDs the relational store no longer has
			logger.WarnContext(ctx, "failed to delete old vectors", "error", err, "count", len(oldIDs))
		}
		if err := p.chunks.DeleteByDoc(ctx, docID); err != nil {
			return 0, 0, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := p.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
	}

	records := make([]*storage.ChunkRecord, len(chunks))
	points := make([]vectorstore.Point, len(chunks))
	for i, chunk := range chunks {
		chunkID := uuid.New().String()
		records[i] = &storage.ChunkRecord{
			ID:           chunkID,
			DocID:        docID,
			ChunkIndex:   chunk.Index,
			Text:         chunk.Text,
			Source:       manifest.Source,
			Section:      chunk.Section,
			SectionPath:  chunk.Path,
			SectionLevel: chunk.Level,
			Region:       manifest.Region,
			ContentType:  manifest.ContentType,
			DocURL:       manifest.URL,
		}
		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: embeddings[i],
		}
	}

	for _, record := range records {
		if err := p.chunks.Insert(ctx, record); err != nil {
			return 0, 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := p.vectors.Upsert(ctx, p.collection, points); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	logger.InfoContext(ctx, "indexed document", "doc_id", docID, "chunks", len(chunks), "sections_skipped", skipped)
	return len(chunks), skipped, nil
}

// IndexAll ingests every markdown document in dir that has a manifest
// sidecar. Per-document failures are logged and counted without stopping
// the run.
func (p *Pipeline) IndexAll(ctx context.Context, dir string) (Stats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	docPaths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return Stats{}, fmt.Errorf("failed to scan document directory: %w", err)
	}

	logger.InfoContext(ctx, "starting ingestion", "dir", dir, "documents", len(docPaths))

	var stats Stats
	for _, docPath := range docPaths {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if _, err := os.Stat(manifestPathFor(docPath)); err != nil {
			logger.WarnContext(ctx, "skipping document without manifest", "path", docPath)
			continue
		}

		chunks, skipped, err := p.IndexDocument(ctx, docPath)
		if err != nil {
			stats.DocsFailed++
			logger.ErrorContext(ctx, "failed to index document", "path", docPath, "error", err)
			continue
		}

		stats.DocsIndexed++
		stats.ChunksIndexed += chunks
		stats.SectionsSkipped += skipped
	}

	logger.InfoContext(ctx, "ingestion completed",
		"docs_indexed", stats.DocsIndexed,
		"docs_failed", stats.DocsFailed,
		"chunks_indexed", stats.ChunksIndexed,
		"sections_skipped", stats.SectionsSkipped,
	)

	if stats.DocsFailed > 0 {
		return stats, fmt.Errorf("ingestion completed with %d errors", stats.DocsFailed)
	}
	return stats, nil
}

// manifestPathFor maps doc.md to its doc.yaml sidecar.
func manifestPathFor(docPath string) string {
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".yaml"
}
