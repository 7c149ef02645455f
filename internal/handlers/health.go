package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"policy-rag/internal/contextutil"
)

// DatabasePinger checks relational store connectivity. *sql.DB satisfies it.
type DatabasePinger interface {
	PingContext(ctx context.Context) error
}

// CollectionChecker checks that the vector index collection exists.
type CollectionChecker interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// LLMPinger checks LLM provider connectivity.
type LLMPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the reachability of each backing service.
type HealthHandler struct {
	db           DatabasePinger
	vectors      CollectionChecker
	llm          LLMPinger
	collection   string
	checkTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DatabasePinger, vectors CollectionChecker, llm LLMPinger, collection string) *HealthHandler {
	return &HealthHandler{
		db:           db,
		vectors:      vectors,
		llm:          llm,
		collection:   collection,
		checkTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall status: "healthy" when every dependency is connected, else "degraded"
	Status string `json:"status"`

	// Database connectivity: "connected" or "error: ..."
	Database string `json:"database"`

	// Vector index connectivity: "connected" or "error: ..."
	VectorDB string `json:"vector_db"`

	// LLM provider connectivity: "connected" or "error: ..."
	LLM string `json:"llm"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// The response is always 200; degradation is reported in the body with the
// failing dependency's error string.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// Probes the relational store, the vector index, and the LLM provider.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Per-dependency connectivity and overall status
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Bound the probes so a hung dependency cannot hang the health check
	checkCtx, cancel := context.WithTimeout(ctx, h.checkTimeout)
	defer cancel()

	response := HealthResponse{Status: "healthy"}

	if err := h.db.PingContext(checkCtx); err != nil {
		logger.WarnContext(ctx, "database health check failed", "error", err)
		response.Database = fmt.Sprintf("error: %v", err)
		response.Status = "degraded"
	} else {
		response.Database = "connected"
	}

	exists, err := h.vectors.CollectionExists(checkCtx, h.collection)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "vector index health check failed", "error", err)
		response.VectorDB = fmt.Sprintf("error: %v", err)
		response.Status = "degraded"
	case !exists:
		logger.WarnContext(ctx, "vector index collection missing", "collection", h.collection)
		response.VectorDB = fmt.Sprintf("error: collection %s not found", h.collection)
		response.Status = "degraded"
	default:
		response.VectorDB = "connected"
	}

	if err := h.llm.Ping(checkCtx); err != nil {
		logger.WarnContext(ctx, "LLM health check failed", "error", err)
		response.LLM = fmt.Sprintf("error: %v", err)
		response.Status = "degraded"
	} else {
		response.LLM = "connected"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
