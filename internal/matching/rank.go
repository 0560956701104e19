// Package matching ranks similarity scores into reviewable guideline/regulation matches.
package matching

import (
	"cmp"
	"fmt"
	"slices"
)

// Ranked is one accepted candidate for a new section.
type Ranked struct {
	Index int
	Score float64
}

// Rank orders candidates by descending score, breaking ties by ascending
// candidate id, keeps the first topK and drops anything below threshold.
// Fewer than topK results are returned when not enough candidates clear it.
func Rank(scores []float64, candidateIDs []string, threshold float64, topK int) ([]Ranked, error) {
	if len(scores) != len(candidateIDs) {
		return nil, fmt.Errorf("rank: %d scores for %d candidates", len(scores), len(candidateIDs))
	}
	if topK <= 0 || len(scores) == 0 {
		return nil, nil
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(candidateIDs[a], candidateIDs[b])
	})
	if len(order) > topK {
		order = order[:topK]
	}
	out := make([]Ranked, 0, len(order))
	for _, idx := range order {
		if scores[idx] < threshold {
			continue
		}
		out = append(out, Ranked{Index: idx, Score: scores[idx]})
	}
	return out, nil
}

// ConfidenceFromScore clips a similarity score into [0, 1].
func ConfidenceFromScore(score float64) float64 {
	return min(max(score, 0), 1)
}
