package indexer

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"policy-rag/internal/storage"
)

// ChunkerVersion is the version identifier for the chunker implementation.
// Update this when chunking logic changes significantly.
const ChunkerVersion = "v1.0"

// CoverageStats describes the indexed corpus as stored, computed from the
// relational store after an ingestion run.
type CoverageStats struct {
	// DocsIndexed is the number of distinct document versions in the index.
	DocsIndexed int `json:"docs_indexed"`
	// ChunksIndexed is the total number of stored chunks.
	ChunksIndexed int `json:"chunks_indexed"`
	// ChunksByRegion is a breakdown of chunk counts per region.
	ChunksByRegion map[string]int `json:"chunks_by_region,omitempty"`
	// ChunksByContentType is a breakdown of chunk counts per content type.
	ChunksByContentType map[string]int `json:"chunks_by_content_type,omitempty"`
	// ChunkTokenStats contains statistics about token counts per chunk.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	// Min is the minimum token count across all chunks.
	Min int `json:"min"`
	// Max is the maximum token count across all chunks.
	Max int `json:"max"`
	// Mean is the mean token count across all chunks.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// GetCoverageStats computes index coverage statistics from the database.
// Tokens are counted the way the chunker budgets them, as whitespace
// delimited fields.
func (p *Pipeline) GetCoverageStats(ctx context.Context, embeddingModelName string) (*CoverageStats, error) {
	chunkRepo, ok := p.chunks.(*storage.ChunkRepo)
	if !ok {
		return nil, fmt.Errorf("chunk store is not *storage.ChunkRepo, cannot query stats")
	}
	db := chunkRepo.DB()

	stats := &CoverageStats{
		ChunksByRegion:      make(map[string]int),
		ChunksByContentType: make(map[string]int),
		ChunkerVersion:      ChunkerVersion,
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT doc_id) FROM policy_chunks`).Scan(&stats.DocsIndexed); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	if err := countByColumn(ctx, db, "region", stats.ChunksByRegion); err != nil {
		return nil, err
	}
	if err := countByColumn(ctx, db, "content_type", stats.ChunksByContentType); err != nil {
		return nil, err
	}

	tokenCounts, err := chunkTokenCounts(ctx, db)
	if err != nil {
		return nil, err
	}
	stats.ChunksIndexed = len(tokenCounts)
	stats.ChunkTokenStats = computeTokenStats(tokenCounts)

	// Hash of everything that invalidates the index when it changes
	indexVersionInput := fmt.Sprintf("%s|%s|maxChunkTokens=%d|minSectionRunes=%d",
		ChunkerVersion, embeddingModelName, maxChunkTokens, minSectionRunes)
	hash := sha256.Sum256([]byte(indexVersionInput))
	stats.IndexVersion = hex.EncodeToString(hash[:])[:16]

	return stats, nil
}

// countByColumn fills dest with chunk counts grouped by the given column.
func countByColumn(ctx context.Context, db *sql.DB, column string, dest map[string]int) error {
	rows, err := db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM policy_chunks GROUP BY %s`, column, column))
	if err != nil {
		return fmt.Errorf("failed to count chunks by %s: %w", column, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		dest[value] = count
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

// chunkTokenCounts returns the whitespace token count of every stored chunk.
func chunkTokenCounts(ctx context.Context, db *sql.DB) ([]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT text FROM policy_chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk texts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var counts []int
	for rows.Next() {
		var chunkText string
		if err := rows.Scan(&chunkText); err != nil {
			return nil, fmt.Errorf("failed to scan chunk text: %w", err)
		}
		counts = append(counts, len(strings.Fields(chunkText)))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	min := sorted[0]
	max := sorted[len(sorted)-1]

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}
	p95 := sorted[p95Index]

	return ChunkTokenStats{
		Min:  min,
		Max:  max,
		Mean: math.Round(mean*100) / 100,
		P95:  p95,
	}
}
