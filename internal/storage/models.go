package storage

import (
	"time"

	"policy-rag/internal/policy"
)

// ChunkRecord represents a policy chunk row. The relational store is the
// authoritative source for chunk attributes; the vector index holds only
// embeddings keyed by the same ID.
type ChunkRecord struct {
	ID           string // UUID (same as Qdrant point ID)
	DocID        string // Versioned document ID, e.g. "google_ads_restricted_2026-08-12"
	ChunkIndex   int    // Index within document (starts at 0)
	Text         string // Chunk text, prefixed with its bracketed section path
	Source       policy.Source
	Section      string // Leaf section title
	SectionPath  string // Full hierarchy, e.g. "Restricted content > Alcohol"
	SectionLevel policy.SectionLevel
	Region       policy.Region
	ContentType  policy.ContentType
	DocURL       string
	CreatedAt    time.Time
}
