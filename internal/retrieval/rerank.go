package retrieval

import (
	"sort"

	"policy-rag/internal/policy"
)

// hierarchyBoost is the score adjustment applied per section depth. With
// PreferSpecific set, H3 subsection chunks move up and broad H2 section
// chunks move down; otherwise the bias inverts.
const hierarchyBoost = 0.1

// rerankByHierarchy adjusts scores by section depth and re-sorts descending.
// The sort is stable so equal-scored chunks keep their incoming vector rank.
func rerankByHierarchy(results []Result, preferSpecific bool) []Result {
	if len(results) == 0 {
		return results
	}

	boost := hierarchyBoost
	if !preferSpecific {
		boost = -hierarchyBoost
	}

	for i := range results {
		switch results[i].SectionLevel {
		case policy.SectionLevelH3:
			results[i].Score += boost
		case policy.SectionLevelH2:
			results[i].Score -= boost
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}
