package retrieval

import (
	"container/heap"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/graphweave/graphweave/graph"
)

// crossThreshold is the tight sub-threshold for one-sided relevance: an
// edge with one endpoint this close qualifies as long as the other
// endpoint is within the main threshold.
const crossThreshold = 0.3

// ThresholdPolicy governs the one-shot dynamic adjustment of the main
// relevance threshold. The breakpoints and step are empirically chosen
// tunables, not derived values.
type ThresholdPolicy struct {
	Base    float64
	Step    float64
	Floor   float64
	Ceiling float64

	// LowFactor widens the threshold when fewer than LowFactor*k
	// candidates pass the preliminary pass; HighFactor narrows it when
	// more than HighFactor*k pass.
	LowFactor  int
	HighFactor int
}

// DefaultThresholdPolicy returns the standard policy: base 0.5 adjusted
// once by ±0.1 within [0.3, 0.7].
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		Base:       0.5,
		Step:       0.1,
		Floor:      0.3,
		Ceiling:    0.7,
		LowFactor:  2,
		HighFactor: 10,
	}
}

// Ranker selects the top-k most relevant triplets from a scored
// working graph.
type Ranker struct {
	policy ThresholdPolicy
	scorer *QualityScorer
	log    *logrus.Logger
}

// NewRanker creates a Ranker. The scorer is optional; when present and
// a query string is supplied, the filtered candidate set is ordered by
// composite quality before truncation instead of by aggregate distance.
func NewRanker(policy ThresholdPolicy, scorer *QualityScorer, log *logrus.Logger) *Ranker {
	if log == nil {
		log = logrus.New()
	}

	return &Ranker{policy: policy, scorer: scorer, log: log}
}

// aggregateScore sums the three distances of a triplet. Unknown
// distances are +Inf, so any missing signal pushes the edge to the
// bottom.
func aggregateScore(e *graph.Edge) float64 {
	return e.Source.Distance + e.Target.Distance + e.Distance
}

// relevant reports whether an edge is eligible at the given threshold.
// Edges touching a NodeSet node never qualify.
func relevant(e *graph.Edge, threshold float64) bool {
	if e.Source.Kind == graph.KindNodeSet || e.Target.Kind == graph.KindNodeSet {
		return false
	}

	d1, d2 := e.Source.Distance, e.Target.Distance
	if math.IsInf(d1, 1) || math.IsInf(d2, 1) {
		return false
	}

	if d1 < threshold && d2 < threshold {
		return true
	}

	// Cross-relevance: one endpoint very close, the other within the
	// main threshold.
	return (d1 < crossThreshold && d2 < threshold) || (d2 < crossThreshold && d1 < threshold)
}

// adjustThreshold runs the preliminary pass and applies the policy's
// one-shot widening or narrowing.
func (r *Ranker) adjustThreshold(edges []*graph.Edge, k int) float64 {
	threshold := r.policy.Base

	count := 0

	for _, e := range edges {
		if relevant(e, threshold) {
			count++
		}
	}

	switch {
	case count < r.policy.LowFactor*k:
		threshold = math.Min(threshold+r.policy.Step, r.policy.Ceiling)
	case count > r.policy.HighFactor*k:
		threshold = math.Max(threshold-r.policy.Step, r.policy.Floor)
	}

	return threshold
}

// TopTriplets filters the graph's edges by the relevance predicate and
// returns the k best triplets. An empty result is an expected outcome,
// logged with its cause; it is never an error.
func (r *Ranker) TopTriplets(g *graph.WorkingGraph, query string, k int) []Triplet {
	edges := g.Edges()
	if len(edges) == 0 || k <= 0 {
		return nil
	}

	threshold := r.adjustThreshold(edges, k)

	candidates := make([]Triplet, 0, len(edges))

	hasDistance := false

	for _, e := range edges {
		if !math.IsInf(e.Source.Distance, 1) || !math.IsInf(e.Target.Distance, 1) {
			hasDistance = true
		}

		if relevant(e, threshold) {
			candidates = append(candidates, Triplet{Edge: e, Score: aggregateScore(e)})
		}
	}

	if len(candidates) == 0 {
		// Distinguish "no distance data at all" from "distances present
		// but nothing passed the threshold"; the causes differ.
		if !hasDistance {
			r.log.WithField("edges", len(edges)).Info("no similarity distances attached to graph, nothing to rank")
		} else {
			r.log.WithFields(logrus.Fields{
				"edges":     len(edges),
				"threshold": threshold,
			}).Info("no edges passed the relevance threshold")
		}

		return nil
	}

	if query != "" && r.scorer != nil {
		ranked := r.scorer.RankByQuality(candidates, query)
		if len(ranked) > k {
			ranked = ranked[:k]
		}

		return ranked
	}

	return selectTopK(candidates, k)
}

// rankedCandidate pairs a triplet with its original candidate index,
// which serves as the deterministic tie-break.
type rankedCandidate struct {
	triplet Triplet
	index   int
}

// tripletHeap is a bounded max-heap over aggregate score, used for
// partial top-k selection in O(n log k).
type tripletHeap []rankedCandidate

func (h tripletHeap) Len() int { return len(h) }

func (h tripletHeap) Less(i, j int) bool {
	if h[i].triplet.Score != h[j].triplet.Score {
		return h[i].triplet.Score > h[j].triplet.Score
	}

	return h[i].index > h[j].index
}

func (h tripletHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *tripletHeap) Push(x any) { *h = append(*h, x.(rankedCandidate)) }

func (h *tripletHeap) Pop() any {
	old := *h
	n := len(old) - 1
	it := old[n]
	*h = old[:n]

	return it
}

// selectTopK keeps the k lowest-score candidates without a full sort.
func selectTopK(candidates []Triplet, k int) []Triplet {
	if len(candidates) <= k {
		sorted := append([]Triplet{}, candidates...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

		return sorted
	}

	h := &tripletHeap{}

	for i, c := range candidates {
		if h.Len() < k {
			heap.Push(h, rankedCandidate{triplet: c, index: i})
			continue
		}

		worst := (*h)[0]
		if c.Score < worst.triplet.Score || (c.Score == worst.triplet.Score && i < worst.index) {
			heap.Pop(h)
			heap.Push(h, rankedCandidate{triplet: c, index: i})
		}
	}

	out := make([]Triplet, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(rankedCandidate).triplet
	}

	return out
}
