package engine

import "sort"

// DuplicateThreshold is the minimum cosine similarity for a duplicate link.
// Materially stricter than link admission: duplicates assert identity, not
// a causal relation. Boundary inclusive: 0.850 admits, 0.849 does not.
const DuplicateThreshold = 0.85

// DedupTopK bounds the nearest-neighbor query for duplicate detection.
const DedupTopK = 10

// Match is one nearest-neighbor hit from the embedding index.
type Match struct {
	BugID      int64
	Similarity float64
}

// TopMatches ranks matches by similarity, best first, and keeps at most k.
// The nearest-neighbor cut happens here, after similarity ranking: an old
// near-identical report must surface no matter how many newer bugs sit
// between it and the query.
func TopMatches(matches []Match, k int) []Match {
	ranked := make([]Match, len(matches))
	copy(ranked, matches)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// SelectDuplicate picks the canonical target from nearest-neighbor matches:
// the highest-similarity match at or above threshold that is not excluded.
// Excluded are the bug itself, bugs reported after it (duplicates point
// backward in time to the earliest occurrence), and confirmed non-duplicates.
func SelectDuplicate(matches []Match, excluded map[int64]bool) (Match, bool) {
	var best Match
	found := false
	for _, m := range matches {
		if m.Similarity < DuplicateThreshold || excluded[m.BugID] {
			continue
		}
		if !found || m.Similarity > best.Similarity {
			best = m
			found = true
		}
	}
	return best, found
}
