// Package fusion combines the ranked outputs of independent retrieval
// channels using weighted Reciprocal Rank Fusion.
package fusion

import "sort"

// rrfK is the standard RRF constant from the literature.
const rrfK = 60

// RankedResult is one entry of a channel's ranked output. After fusion,
// Score holds the accumulated RRF score.
type RankedResult struct {
	ID      string
	Payload any
	Score   float64
}

// Fuse merges the channels' ranked lists. Weights are normalized to sum
// to one; a nil or mismatched weight slice means equal weights. Each
// result at 0-based rank r contributes weight * 1/(rrfK + r + 1) to its
// id; ids are deduplicated by summing contributions and keeping the
// first-seen payload. Output is sorted descending by fused score, ties
// broken by first-seen order.
func Fuse(channels [][]RankedResult, weights []float64) []RankedResult {
	if len(channels) == 0 {
		return nil
	}

	weights = normalizeWeights(weights, len(channels))

	type entry struct {
		result RankedResult
		order  int
	}

	fused := make(map[string]*entry)
	order := 0

	for c, channel := range channels {
		for rank, res := range channel {
			e, ok := fused[res.ID]
			if !ok {
				e = &entry{result: RankedResult{ID: res.ID, Payload: res.Payload}, order: order}
				fused[res.ID] = e
				order++
			}

			e.result.Score += weights[c] / float64(rrfK+rank+1)
		}
	}

	entries := make([]*entry, 0, len(fused))
	for _, e := range fused {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].result.Score != entries[j].result.Score {
			return entries[i].result.Score > entries[j].result.Score
		}

		return entries[i].order < entries[j].order
	})

	out := make([]RankedResult, len(entries))
	for i, e := range entries {
		out[i] = e.result
	}

	return out
}

func normalizeWeights(weights []float64, n int) []float64 {
	if len(weights) != n {
		weights = nil
	}

	var sum float64

	for _, w := range weights {
		sum += w
	}

	if weights == nil || sum <= 0 {
		equal := make([]float64, n)
		for i := range equal {
			equal[i] = 1 / float64(n)
		}

		return equal
	}

	normalized := make([]float64, n)
	for i, w := range weights {
		normalized[i] = w / sum
	}

	return normalized
}
