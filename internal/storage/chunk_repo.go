package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks policy-rag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"policy-rag/internal/policy"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// ChunkStore defines the interface for policy chunk storage operations.
type ChunkStore interface {
	// Insert inserts a single chunk into the database.
	// The chunk.ID must be set (UUID) before calling this method.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// FetchByIDs returns the chunks among ids that satisfy every set filter,
	// keyed by chunk ID. IDs with no matching row are simply absent.
	FetchByIDs(ctx context.Context, ids []string, filters policy.Filters) (map[string]*ChunkRecord, error)
	// DeleteByDoc deletes all chunks for a given versioned document ID.
	DeleteByDoc(ctx context.Context, docID string) error
	// ListIDsByDoc returns all chunk IDs for a given document, ordered by chunk_index.
	ListIDsByDoc(ctx context.Context, docID string) ([]string, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// Count returns the total number of stored chunks.
	Count(ctx context.Context) (int, error)
}

const chunkColumns = "id, doc_id, chunk_index, text, policy_source, policy_section, policy_path, policy_section_level, region, content_type, doc_url, created_at"

// ChunkRepo provides methods for policy chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// DB exposes the underlying database handle for ad-hoc reporting queries.
func (r *ChunkRepo) DB() *sql.DB {
	return r.db
}

// Insert inserts a single chunk into the database.
// The chunk.ID must be set (UUID) before calling this method.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO policy_chunks
			(id, doc_id, chunk_index, text, policy_source, policy_section, policy_path, policy_section_level, region, content_type, doc_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.DocID, chunk.ChunkIndex, chunk.Text,
		chunk.Source, chunk.Section, chunk.SectionPath, chunk.SectionLevel,
		chunk.Region, chunk.ContentType, chunk.DocURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// FetchByIDs returns the chunks among ids that satisfy every set filter,
// keyed by chunk ID. Vector search candidates whose rows fail a filter (or
// no longer exist) are dropped here rather than checked against vector
// payloads, so the relational store stays authoritative.
func (r *ChunkRepo) FetchByIDs(ctx context.Context, ids []string, filters policy.Filters) (map[string]*ChunkRecord, error) {
	chunks := make(map[string]*ChunkRecord, len(ids))
	if len(ids) == 0 {
		return chunks, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := "SELECT " + chunkColumns + " FROM policy_chunks WHERE id IN (" + placeholders + ")"

	args := make([]any, 0, len(ids)+3)
	for _, id := range ids {
		args = append(args, id)
	}
	if filters.Region != nil {
		query += " AND region = ?"
		args = append(args, *filters.Region)
	}
	if filters.ContentType != nil {
		query += " AND content_type = ?"
		args = append(args, *filters.ContentType)
	}
	if filters.Source != nil {
		query += " AND policy_source = ?"
		args = append(args, *filters.Source)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks[chunk.ID] = chunk
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}

// DeleteByDoc deletes all chunks for a given versioned document ID.
// Used when re-ingesting a document to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteByDoc(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM policy_chunks WHERE doc_id = ?", docID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by doc: %w", err)
	}
	return nil
}

// ListIDsByDoc returns all chunk IDs for a given document, ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
// Used to get Qdrant point IDs for deletion before re-ingesting.
func (r *ChunkRepo) ListIDsByDoc(ctx context.Context, docID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM policy_chunks WHERE doc_id = ? ORDER BY chunk_index",
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM policy_chunks WHERE id = ?",
		id,
	)

	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return chunk, nil
}

// Count returns the total number of stored chunks.
func (r *ChunkRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM policy_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(s scanner) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := s.Scan(
		&chunk.ID, &chunk.DocID, &chunk.ChunkIndex, &chunk.Text,
		&chunk.Source, &chunk.Section, &chunk.SectionPath, &chunk.SectionLevel,
		&chunk.Region, &chunk.ContentType, &chunk.DocURL, &chunk.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}
	return &chunk, nil
}
