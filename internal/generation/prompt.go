package generation

import (
	"fmt"
	"strings"

	"policy-rag/internal/retrieval"
)

// refuseSentinel is the exact token the model must emit when the provided
// sources cannot answer the question.
const refuseSentinel = "REFUSE"

// answerPromptTemplate constrains the model to the retrieved sources: every
// claim carries a [SOURCE:<chunk_id>] marker, and the refusal sentinel is the
// only permitted response when the sources fall short.
const answerPromptTemplate = `You are a policy compliance assistant for Google Ads.

Answer using ONLY the sources below. Every factual claim MUST include a citation.

Rules:
1. Use ONLY the provided sources - no external knowledge
2. Cite sources using this exact format: [SOURCE:<chunk_id>]
3. If sources lack sufficient information, respond with exactly: REFUSE

Question: %s

Sources:
%s

Answer:`

// buildPrompt renders the grounded answer prompt for a query and its
// retrieved sources.
func buildPrompt(query string, results []retrieval.Result) string {
	return fmt.Sprintf(answerPromptTemplate, query, formatSources(results))
}

// formatSources renders each chunk under a SOURCE header carrying the chunk
// ID the model must cite.
func formatSources(results []retrieval.Result) string {
	blocks := make([]string, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, fmt.Sprintf("SOURCE %s:\n%s\n", result.ChunkID, result.Text))
	}
	return strings.Join(blocks, "\n")
}
