package retrieval

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retrieval.go -package=mocks policy-rag/internal/retrieval Embedder,VectorSearcher,Retriever

import (
	"context"
	"errors"
	"fmt"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/storage"
	"policy-rag/internal/vectorstore"
)

// ErrUnavailable is returned when a retrieval backend (embeddings service,
// vector index, or relational store) cannot be reached.
var ErrUnavailable = errors.New("retrieval backend unavailable")

// overfetchFactor widens the vector search beyond the requested limit so
// attribute filtering can drop candidates without starving the result set.
const overfetchFactor = 3

// Embedder produces an embedding for a piece of text.
// This interface is defined from the retriever's perspective (consumer-first).
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher finds the nearest stored vectors for a query embedding.
type VectorSearcher interface {
	Search(ctx context.Context, collection string, query []float32, k int) ([]vectorstore.Neighbor, error)
}

// Retriever finds policy chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, params Params) ([]Result, error)
}

// HybridRetriever implements Retriever by combining semantic vector search
// with relational attribute filtering. The vector index nominates candidates
// by similarity; the relational store decides which survive. A candidate
// whose row is missing or fails a filter is dropped, so stale vector points
// can never reach the caller.
type HybridRetriever struct {
	embedder   Embedder
	searcher   VectorSearcher
	collection string
	chunks     storage.ChunkStore
}

// NewHybridRetriever creates a retriever over the given backends.
func NewHybridRetriever(embedder Embedder, searcher VectorSearcher, collection string, chunks storage.ChunkStore) *HybridRetriever {
	return &HybridRetriever{
		embedder:   embedder,
		searcher:   searcher,
		collection: collection,
		chunks:     chunks,
	}
}

// Retrieve runs the hybrid retrieval pipeline: embed the query, overfetch
// nearest neighbors, filter through the relational store, rerank by section
// hierarchy, and truncate to the requested limit.
func (r *HybridRetriever) Retrieve(ctx context.Context, params Params) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if params.Limit <= 0 {
		return []Result{}, nil
	}

	queryVector, err := r.embedder.EmbedText(ctx, params.Query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w: %w", ErrUnavailable, err)
	}

	overfetch := params.Limit * overfetchFactor
	neighbors, err := r.searcher.Search(ctx, r.collection, queryVector, overfetch)
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed", "error", err)
		return nil, fmt.Errorf("vector search failed: %w: %w", ErrUnavailable, err)
	}

	if len(neighbors) == 0 {
		logger.InfoContext(ctx, "no vector candidates for query", "limit", params.Limit)
		return []Result{}, nil
	}

	ids := make([]string, 0, len(neighbors))
	for _, neighbor := range neighbors {
		ids = append(ids, neighbor.ChunkID)
	}

	rows, err := r.chunks.FetchByIDs(ctx, ids, params.Filters)
	if err != nil {
		logger.ErrorContext(ctx, "chunk lookup failed", "error", err)
		return nil, fmt.Errorf("chunk lookup failed: %w: %w", ErrUnavailable, err)
	}

	// Walk neighbors in vector rank order so ties after reranking keep
	// their similarity ordering.
	results := make([]Result, 0, len(rows))
	for _, neighbor := range neighbors {
		row, ok := rows[neighbor.ChunkID]
		if !ok {
			continue
		}
		results = append(results, Result{
			ChunkID:      row.ID,
			Text:         row.Text,
			Score:        1.0 / (1.0 + neighbor.Distance),
			PolicyPath:   row.SectionPath,
			SectionLevel: row.SectionLevel,
			DocID:        row.DocID,
			DocURL:       row.DocURL,
		})
	}

	results = rerankByHierarchy(results, params.PreferSpecific)

	if len(results) > params.Limit {
		results = results[:params.Limit]
	}

	logger.InfoContext(ctx, "retrieval completed",
		"candidates", len(neighbors),
		"after_filter", len(rows),
		"returned", len(results),
		"limit", params.Limit,
	)

	return results, nil
}
