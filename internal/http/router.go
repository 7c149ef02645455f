package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"policy-rag/internal/generation"
	"policy-rag/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Answers    generation.AnswerService
	Database   handlers.DatabasePinger
	Vectors    handlers.CollectionChecker
	LLM        handlers.LLMPinger
	Collection string // Qdrant collection probed by the health check
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	queryHandler := handlers.NewQueryHandler(deps.Answers)
	healthHandler := handlers.NewHealthHandler(deps.Database, deps.Vectors, deps.LLM, deps.Collection)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Route("/v1", func(r chi.Router) {
			r.Method(http.MethodPost, "/query", queryHandler)
		})
	})

	// Serve service banner at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"service": "policy-rag",
			"status":  "running",
		})
	})

	return r
}
