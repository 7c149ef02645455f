package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_index.go -package=mocks policy-rag/internal/vectorstore VectorIndex

import "context"

// Point represents a vector point. Chunk attributes live in the
// relational store; points carry only the identifier and the embedding.
type Point struct {
	ID  string
	Vec []float32
}

// Neighbor is a vector search candidate: a chunk identifier with its
// cosine distance from the query vector (0 means identical).
type Neighbor struct {
	ChunkID  string
	Distance float64
}

// VectorIndex defines the interface for vector index operations.
type VectorIndex interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to k nearest neighbors of the query vector,
	// ordered by ascending distance.
	Search(ctx context.Context, collection string, query []float32, k int) ([]Neighbor, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error
}
