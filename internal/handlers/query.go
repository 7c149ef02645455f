package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/generation"
	"policy-rag/internal/policy"
	"policy-rag/internal/retrieval"
)

const (
	minQueryLength = 3
	maxQueryLength = 500
	minLimit       = 1
	maxLimit       = 20
)

// QueryHandler handles HTTP requests for policy compliance questions.
type QueryHandler struct {
	answers generation.AnswerService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(answers generation.AnswerService) *QueryHandler {
	return &QueryHandler{answers: answers}
}

// QueryRequest represents the HTTP request payload for policy questions.
// Filter values arrive as raw strings and are validated here, before any
// backend is contacted.
//
// swagger:model QueryRequest
type QueryRequest struct {
	// Query is the question to answer, 3 to 500 characters.
	Query string `json:"query"`
	// Limit caps the number of chunks consulted, 1 to 20. Defaults to 5.
	Limit *int `json:"limit,omitempty"`
	// Region restricts sources by region: global, us, eu, uk.
	Region string `json:"region,omitempty"`
	// ContentType restricts sources by ad format: ad_text, image, video,
	// landing_page, general.
	ContentType string `json:"content_type,omitempty"`
	// PolicySource restricts sources by publisher: google.
	PolicySource string `json:"policy_source,omitempty"`
}

// CitationResponse represents one citation in the HTTP response.
//
// swagger:model CitationResponse
type CitationResponse struct {
	// ChunkID of the cited policy chunk
	ChunkID string `json:"chunk_id"`
	// PolicyPath is the section hierarchy of the cited chunk
	PolicyPath string `json:"policy_path"`
	// DocID is the versioned source document ID
	DocID string `json:"doc_id"`
	// DocURL is the public URL of the source document
	DocURL string `json:"doc_url"`
}

// QueryResponse represents the HTTP response payload for policy questions.
// This mirrors generation.PolicyResponse but is defined here for HTTP layer separation.
//
// swagger:model QueryResponse
type QueryResponse struct {
	// The generated answer, empty when refused
	Answer string `json:"answer"`

	// Refused indicates the system declined to answer
	Refused bool `json:"refused"`

	// Citations backing the answer, empty (never null) when refused
	Citations []CitationResponse `json:"citations"`

	// RefusalReason explains a refusal, absent otherwise
	RefusalReason string `json:"refusal_reason,omitempty"`

	// LatencyMS is the pipeline latency in milliseconds
	LatencyMS float64 `json:"latency_ms"`

	// NumTokensGenerated is the whitespace token count of the answer
	NumTokensGenerated int `json:"num_tokens_generated,omitempty"`
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for policy questions.
//
// swagger:route POST /api/v1/query policyQuery
//
// # Answer a policy compliance question
//
// Retrieves relevant policy chunks, generates a grounded answer, and returns
// it with citations. The system refuses rather than answer without support.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer or refusal, both with latency and citations
//	  schema:
//	    "$ref": "#/definitions/QueryResponse"
//	'400':
//	  description: Bad request (malformed body, query length, limit bounds, or unknown filter value)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'503':
//	  description: Retrieval backend unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'500':
//	  description: Internal server error
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validate request
	queryLength := utf8.RuneCountInString(req.Query)
	if queryLength < minQueryLength || queryLength > maxQueryLength {
		logger.WarnContext(ctx, "query length out of range", "length", queryLength)
		h.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Query must be between %d and %d characters", minQueryLength, maxQueryLength))
		return
	}

	limit := 0
	if req.Limit != nil {
		limit = *req.Limit
		if limit < minLimit || limit > maxLimit {
			logger.WarnContext(ctx, "limit out of range", "limit", limit)
			h.writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Limit must be between %d and %d", minLimit, maxLimit))
			return
		}
	}

	// Validate filter vocabulary before any backend is contacted
	filters, err := policy.ParseFilters(req.Region, req.ContentType, req.PolicySource)
	if err != nil {
		logger.WarnContext(ctx, "invalid filter value", "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.answers.Answer(ctx, generation.Request{
		Query:   req.Query,
		Limit:   limit,
		Filters: filters,
	})
	if err != nil {
		h.handleAnswerError(w, r, err)
		return
	}

	// Convert pipeline response to HTTP response
	citations := make([]CitationResponse, len(result.Citations))
	for i, c := range result.Citations {
		citations[i] = CitationResponse{
			ChunkID:    c.ChunkID,
			PolicyPath: c.PolicyPath,
			DocID:      c.DocID,
			DocURL:     c.DocURL,
		}
	}

	resp := QueryResponse{
		Answer:             result.Answer,
		Refused:            result.Refused,
		Citations:          citations,
		RefusalReason:      result.RefusalReason,
		LatencyMS:          result.LatencyMS,
		NumTokensGenerated: result.NumTokensGenerated,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleAnswerError maps pipeline errors to HTTP status codes.
func (h *QueryHandler) handleAnswerError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "query pipeline error", "error", err)

	if errors.Is(err, retrieval.ErrUnavailable) {
		h.writeError(w, http.StatusServiceUnavailable, "Retrieval backend unavailable")
		return
	}

	h.writeError(w, http.StatusInternalServerError, "Failed to process query")
}

// writeError writes an error response.
func (h *QueryHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
