package generation

import (
	"regexp"

	"policy-rag/internal/retrieval"
)

// citationPattern matches the [SOURCE:<chunk_id>] markers required by the
// answer prompt.
var citationPattern = regexp.MustCompile(`\[SOURCE:([^\]]+)\]`)

// extractCitations returns the chunk IDs cited in an answer, deduplicated in
// first-cited order.
func extractCitations(answer string) []string {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[string]struct{}, len(matches))
	cited := make([]string, 0, len(matches))
	for _, match := range matches {
		id := match[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cited = append(cited, id)
	}
	return cited
}

// validateCitations reports whether every cited chunk ID refers to a
// retrieved chunk. An answer citing nothing at all also fails.
func validateCitations(cited []string, results []retrieval.Result) bool {
	if len(cited) == 0 {
		return false
	}

	retrieved := make(map[string]struct{}, len(results))
	for _, result := range results {
		retrieved[result.ChunkID] = struct{}{}
	}

	for _, id := range cited {
		if _, ok := retrieved[id]; !ok {
			return false
		}
	}
	return true
}

// buildCitations resolves cited chunk IDs against the retrieved results,
// keeping first-cited order.
func buildCitations(cited []string, results []retrieval.Result) []Citation {
	byID := make(map[string]retrieval.Result, len(results))
	for _, result := range results {
		byID[result.ChunkID] = result
	}

	citations := make([]Citation, 0, len(cited))
	for _, id := range cited {
		result, ok := byID[id]
		if !ok {
			continue
		}
		citations = append(citations, Citation{
			ChunkID:    id,
			PolicyPath: result.PolicyPath,
			DocID:      result.DocID,
			DocURL:     result.DocURL,
		})
	}
	return citations
}
