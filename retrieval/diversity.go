package retrieval

// DefaultMaxPerType caps how many triplets of each node type appear in
// the final set.
const DefaultMaxPerType = 2

// DiversityFilter trims a ranked result set so no node type dominates
// it. The cap is soft: a triplet survives as long as at least one of
// its endpoint types is still under the cap, but an over-cap type is
// never incremented further. A triplet whose both endpoints already
// appear in kept results is dropped as redundant.
type DiversityFilter struct {
	MaxPerType int
}

// NewDiversityFilter creates a filter; maxPerType <= 0 selects the
// default cap.
func NewDiversityFilter(maxPerType int) *DiversityFilter {
	if maxPerType <= 0 {
		maxPerType = DefaultMaxPerType
	}

	return &DiversityFilter{MaxPerType: maxPerType}
}

// Filter iterates the results in their current order and keeps a
// diversity-constrained subset. It never grows the set and is
// idempotent for a fixed cap.
func (f *DiversityFilter) Filter(results []Triplet) []Triplet {
	counts := make(map[string]int)
	included := make(map[string]bool)

	kept := make([]Triplet, 0, len(results))

	for _, t := range results {
		src, tgt := t.Edge.Source, t.Edge.Target

		if included[src.ID] && included[tgt.ID] {
			continue
		}

		srcBelow := counts[src.Type] < f.MaxPerType
		tgtBelow := counts[tgt.Type] < f.MaxPerType

		if !srcBelow && !tgtBelow {
			continue
		}

		kept = append(kept, t)

		// A triplet counts once per distinct endpoint type.
		if srcBelow {
			counts[src.Type]++
		}

		if tgtBelow && tgt.Type != src.Type {
			counts[tgt.Type]++
		}

		included[src.ID] = true
		included[tgt.ID] = true
	}

	return kept
}
