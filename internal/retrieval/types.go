package retrieval

import "policy-rag/internal/policy"

// DefaultLimit is the number of results returned when the caller does not
// specify one.
const DefaultLimit = 5

// Params describes a single retrieval request.
type Params struct {
	// Query is the natural-language question to search for.
	Query string
	// Limit caps the number of results. Zero or negative yields no results.
	Limit int
	// Filters restrict candidates by policy attributes. Unset dimensions
	// are unconstrained.
	Filters policy.Filters
	// PreferSpecific biases reranking toward H3 subsection chunks over
	// broader H2 section chunks.
	PreferSpecific bool
}

// NewParams returns Params for the given query with standard defaults:
// DefaultLimit results, no filters, subsection chunks preferred.
func NewParams(query string) Params {
	return Params{
		Query:          query,
		Limit:          DefaultLimit,
		PreferSpecific: true,
	}
}

// Result is one retrieved policy chunk with its relevance score.
type Result struct {
	// ChunkID is the stable chunk identifier (Qdrant point ID).
	ChunkID string
	// Text is the chunk text, including its bracketed section path prefix.
	Text string
	// Score is the final relevance score after hierarchy reranking.
	// The base score is 1/(1+distance), so unreranked scores fall in (0, 1].
	Score float64
	// PolicyPath is the section hierarchy, e.g. "Restricted content > Alcohol".
	PolicyPath string
	// SectionLevel is the heading depth of the chunk's leaf section.
	SectionLevel policy.SectionLevel
	// DocID is the versioned source document ID.
	DocID string
	// DocURL is the public URL of the source document.
	DocURL string
}
