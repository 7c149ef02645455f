package generation

import "policy-rag/internal/policy"

// Request represents a policy question to answer with citations.
type Request struct {
	// Query is the natural-language question.
	Query string
	// Limit caps retrieved chunks. Zero means the retrieval default.
	Limit int
	// Filters restrict which policy chunks may ground the answer.
	Filters policy.Filters
}

// Citation points at the policy chunk backing a claim in the answer.
type Citation struct {
	// ChunkID is the cited chunk's stable identifier.
	ChunkID string `json:"chunk_id"`
	// PolicyPath is the section hierarchy, e.g. "Restricted content > Alcohol".
	PolicyPath string `json:"policy_path"`
	// DocID is the versioned source document ID.
	DocID string `json:"doc_id"`
	// DocURL is the public URL of the source document.
	DocURL string `json:"doc_url"`
}

// PolicyResponse is the outcome of the answer pipeline: either a grounded
// answer with citations, or a refusal with its reason. Citations is always
// present, empty on refusal.
type PolicyResponse struct {
	Answer             string     `json:"answer"`
	Refused            bool       `json:"refused"`
	Citations          []Citation `json:"citations"`
	RefusalReason      string     `json:"refusal_reason,omitempty"`
	LatencyMS          float64    `json:"latency_ms"`
	NumTokensGenerated int        `json:"num_tokens_generated,omitempty"`
}
