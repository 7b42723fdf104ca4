package retrieval

import (
	"math"
	"sort"
	"strings"

	"github.com/graphweave/graphweave/graph"
)

// Weights of the per-node quality signals. They sum to 1 so node scores
// stay in [0, 1].
const (
	weightDistance = 0.4
	weightText     = 0.3
	weightContext  = 0.2
	weightDegree   = 0.1

	// degreeCeiling is the assumed adjacency ceiling for degree
	// normalization.
	degreeCeiling = 50

	// descriptionDiscount down-weights description matches relative to
	// name matches.
	descriptionDiscount = 0.8

	// DefaultMinQuality is the default floor for FilterLowQuality.
	DefaultMinQuality = 0.6
)

// QualityScorer computes composite 0-1 relevance scores for nodes and
// triplets from distance, text-similarity, completeness, and structural
// signals. The zero value is ready to use.
type QualityScorer struct{}

// distanceScore maps a vector distance to [0, 1]: max(0, 1 - min(d, 1)).
// Unknown distances contribute the floor of zero.
func distanceScore(distance float64) float64 {
	if math.IsInf(distance, 1) || math.IsNaN(distance) {
		return 0
	}

	return math.Max(0, 1-math.Min(distance, 1))
}

// NodeScore returns the node's composite relevance score in [0, 1].
// Nodes with entirely missing attributes degrade to the floor
// contribution of each term, never below zero.
func (s *QualityScorer) NodeScore(n *graph.Node, query string) float64 {
	dist := distanceScore(n.Distance)

	text := textSimilarity(query, n.Name())
	if text == 0 {
		text = textSimilarity(query, n.Description()) * descriptionDiscount
	}

	completeness := s.completeness(n)

	degree := math.Min(1, float64(n.Degree())/degreeCeiling)

	score := weightDistance*dist + weightText*text + weightContext*completeness + weightDegree*degree

	return clamp01(score)
}

// completeness returns the context-completeness signal: the
// pre-computed quality_score attribute when present, otherwise an
// estimate from which descriptive attributes exist.
func (s *QualityScorer) completeness(n *graph.Node) float64 {
	if q, ok := n.QualityScore(); ok {
		return clamp01(q)
	}

	hasName := n.Name() != ""
	hasDescription := n.Description() != ""

	switch {
	case hasName && hasDescription:
		return 0.8
	case hasName || hasDescription:
		return 0.5
	default:
		return 0.2
	}
}

// TripletScore combines the endpoint node scores with the edge's own
// distance score: mean(endpoints)*0.8 + edge*0.2.
func (s *QualityScorer) TripletScore(t Triplet, query string) float64 {
	nodes := (s.NodeScore(t.Edge.Source, query) + s.NodeScore(t.Edge.Target, query)) / 2
	edge := distanceScore(t.Edge.Distance)

	return clamp01(nodes*0.8 + edge*0.2)
}

// FilterLowQuality drops triplets scoring below minScore. A minScore of
// zero disables filtering entirely.
func (s *QualityScorer) FilterLowQuality(results []Triplet, query string, minScore float64) []Triplet {
	if minScore == 0 {
		return results
	}

	kept := make([]Triplet, 0, len(results))

	for _, t := range results {
		if s.TripletScore(t, query) >= minScore {
			kept = append(kept, t)
		}
	}

	return kept
}

// RankByQuality returns the results sorted descending by composite
// quality. The sort is stable: ties keep their original order, so
// repeated runs are reproducible. Each returned triplet carries its
// computed Quality.
func (s *QualityScorer) RankByQuality(results []Triplet, query string) []Triplet {
	ranked := make([]Triplet, len(results))

	for i, t := range results {
		t.Quality = s.TripletScore(t, query)
		ranked[i] = t
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Quality > ranked[j].Quality })

	return ranked
}

// textSimilarity measures lexical overlap between two strings in
// [0, 1]: exact match 1.0, containment 0.9, otherwise token Jaccard.
func textSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return 1
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	setA := tokenSet(a)
	setB := tokenSet(b)

	shared := 0

	for t := range setB {
		if setA[t] {
			shared++
		}
	}

	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}

	return float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}

	return set
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
