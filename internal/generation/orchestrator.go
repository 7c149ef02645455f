package generation

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generation.go -package=mocks policy-rag/internal/generation CompletionClient,AnswerService

import (
	"context"
	"fmt"
	"strings"
	"time"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/retrieval"
)

// MinConfidenceScore is the floor on the top retrieval score. Below it the
// retrieved chunks are too weak a match to answer from.
const MinConfidenceScore = 0.25

// CompletionClient generates text from a prompt.
// This interface is defined from the orchestrator's perspective (consumer-first).
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AnswerService answers policy questions grounded in retrieved chunks.
type AnswerService interface {
	// Answer runs the full pipeline for one question. A refusal is a normal
	// PolicyResponse; the error is non-nil only when retrieval itself fails.
	Answer(ctx context.Context, req Request) (PolicyResponse, error)
}

// Orchestrator implements AnswerService: retrieve, gate on confidence,
// generate, then validate citations before anything reaches the caller.
type Orchestrator struct {
	retriever retrieval.Retriever
	llm       CompletionClient
}

// NewOrchestrator creates the answer pipeline over a retriever and an LLM client.
func NewOrchestrator(retriever retrieval.Retriever, llm CompletionClient) *Orchestrator {
	return &Orchestrator{
		retriever: retriever,
		llm:       llm,
	}
}

// Answer retrieves policy chunks for the query and generates a cited answer.
// Every non-error path reports its latency, refusals included.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (PolicyResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	params := retrieval.NewParams(req.Query)
	if req.Limit > 0 {
		params.Limit = req.Limit
	}
	params.Filters = req.Filters

	results, err := o.retriever.Retrieve(ctx, params)
	if err != nil {
		return PolicyResponse{}, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "refusing to answer", "reason", "no results")
		return refusal(start, "No relevant policies found for this query."), nil
	}

	if results[0].Score < MinConfidenceScore {
		logger.InfoContext(ctx, "refusing to answer",
			"reason", "low confidence",
			"top_score", results[0].Score,
		)
		return refusal(start, fmt.Sprintf("Insufficient confidence in policy match (score: %.2f).", results[0].Score)), nil
	}

	prompt := buildPrompt(req.Query, results)
	logger.DebugContext(ctx, "prompt built", "prompt_length", len(prompt), "sources", len(results))

	raw, err := o.llm.Complete(ctx, prompt)
	if err != nil {
		logger.ErrorContext(ctx, "LLM generation failed", "error", err)
		return refusal(start, fmt.Sprintf("LLM generation failed: %v", err)), nil
	}

	answer := strings.TrimSpace(raw)
	if answer == refuseSentinel {
		logger.InfoContext(ctx, "refusing to answer", "reason", "model declined")
		return refusal(start, "LLM determined sources insufficient to answer query."), nil
	}

	cited := extractCitations(answer)
	if !validateCitations(cited, results) {
		logger.WarnContext(ctx, "refusing to answer",
			"reason", "citation validation failed",
			"cited", cited,
		)
		return refusal(start, "Generated response failed citation validation."), nil
	}

	response := PolicyResponse{
		Answer:             answer,
		Citations:          buildCitations(cited, results),
		LatencyMS:          msSince(start),
		NumTokensGenerated: len(strings.Fields(answer)),
	}

	logger.InfoContext(ctx, "answer generated",
		"citations", len(response.Citations),
		"tokens", response.NumTokensGenerated,
		"latency_ms", response.LatencyMS,
	)
	return response, nil
}

func refusal(start time.Time, reason string) PolicyResponse {
	return PolicyResponse{
		Refused:       true,
		RefusalReason: reason,
		Citations:     []Citation{},
		LatencyMS:     msSince(start),
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
