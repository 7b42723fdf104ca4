package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/graph"
)

// Default collection names, one per embedded text field of the graph.
const (
	CollectionEntityNames = "entity_names"
	CollectionEntityTypes = "entity_types"
	CollectionSummaries   = "summaries"
	CollectionChunks      = "chunks"
	CollectionRelations   = "relations"
)

// DefaultCollections returns the node collections searched when none
// are configured.
func DefaultCollections() []string {
	return []string{
		CollectionEntityNames,
		CollectionEntityTypes,
		CollectionSummaries,
		CollectionChunks,
	}
}

// CandidateRetriever embeds the query once and fans one similarity
// query per collection out against the vector store, then merges the
// resulting distances onto the working graph.
type CandidateRetriever struct {
	vectors            VectorStore
	collections        []string
	relationCollection string
	log                *logrus.Logger
}

// NewCandidateRetriever creates a retriever over the given node
// collections. Pass nil to use DefaultCollections. relationCollection
// may be empty, in which case edge distances are recomputed from
// relation-label embeddings.
func NewCandidateRetriever(vectors VectorStore, collections []string, relationCollection string, log *logrus.Logger) *CandidateRetriever {
	if collections == nil {
		collections = DefaultCollections()
	}

	if log == nil {
		log = logrus.New()
	}

	return &CandidateRetriever{
		vectors:            vectors,
		collections:        collections,
		relationCollection: relationCollection,
		log:                log,
	}
}

// searchLimit bounds each per-collection query by the result-count
// ceiling max(10*topK, 50).
func searchLimit(topK int) int {
	limit := 10 * topK
	if limit < 50 {
		limit = 50
	}

	return limit
}

// Retrieve embeds the query, runs all collection searches concurrently,
// and writes the minimum observed distance onto each matching node and
// edge. It returns false when every collection came back empty, which
// is the pipeline's single global early-exit condition. A missing or
// failing collection contributes an empty result, never an error.
func (r *CandidateRetriever) Retrieve(ctx context.Context, g *graph.WorkingGraph, query string, topK int) (bool, error) {
	vectors, err := r.vectors.Embed(ctx, []string{query})
	if err != nil {
		return false, fmt.Errorf("embedding query: %w", err)
	}

	if len(vectors) == 0 {
		return false, fmt.Errorf("embedding query: empty embedding response")
	}

	queryVector := vectors[0]
	limit := searchLimit(topK)

	searched := r.collections
	if r.relationCollection != "" {
		searched = append(append([]string{}, r.collections...), r.relationCollection)
	}

	// Each goroutine writes only its own slot; results are merged
	// sequentially after the join.
	results := make([][]ScoredPoint, len(searched))

	eg, gctx := errgroup.WithContext(ctx)

	for i, collection := range searched {
		eg.Go(func() error {
			points, err := r.vectors.Search(gctx, collection, queryVector, limit)
			if err != nil {
				if errors.Is(err, ErrCollectionNotFound) {
					r.log.WithField("collection", collection).Debug("collection not found, treating as empty")
				} else {
					// One collection's failure must not abort the others.
					r.log.WithError(err).WithField("collection", collection).Warn("similarity search failed")
				}

				return nil
			}

			results[i] = points

			return nil
		})
	}

	// Goroutines never return errors; Wait is a pure join.
	_ = eg.Wait()

	empty := true

	for _, points := range results {
		if len(points) > 0 {
			empty = false
			break
		}
	}

	if empty {
		r.log.WithField("query", query).Info("vector search returned no candidates in any collection")
		return false, nil
	}

	unmatched := 0

	for i, collection := range searched {
		if r.relationCollection != "" && collection == r.relationCollection && i == len(searched)-1 {
			r.mergeEdgeDistances(g, results[i])
			continue
		}

		unmatched += r.mergeNodeDistances(g, results[i])
	}

	if unmatched > 0 {
		r.log.WithField("unmatched", unmatched).Debug("similarity hits without a projected node")
	}

	if r.relationCollection == "" {
		r.scoreRelationsByEmbedding(ctx, g, queryVector)
	}

	return true, nil
}

// mergeNodeDistances writes the minimum distance per node and returns
// the number of hits that matched no projected node.
func (r *CandidateRetriever) mergeNodeDistances(g *graph.WorkingGraph, points []ScoredPoint) int {
	unmatched := 0

	for _, pt := range points {
		node, err := g.GetNode(pt.ID)
		if err != nil {
			unmatched++
			continue
		}

		if pt.Score < node.Distance {
			node.Distance = pt.Score
		}
	}

	return unmatched
}

// mergeEdgeDistances matches relation-collection hits onto edges by
// relation label (the point id) and keeps the minimum distance.
func (r *CandidateRetriever) mergeEdgeDistances(g *graph.WorkingGraph, points []ScoredPoint) {
	if len(points) == 0 {
		return
	}

	byRelation := make(map[string]float64, len(points))

	for _, pt := range points {
		label := pt.ID
		if rel, ok := pt.Payload["relation"].(string); ok && rel != "" {
			label = rel
		}

		if d, ok := byRelation[label]; !ok || pt.Score < d {
			byRelation[label] = pt.Score
		}
	}

	for _, e := range g.Edges() {
		if d, ok := byRelation[e.Relation]; ok && d < e.Distance {
			e.Distance = d
		}
	}
}

// scoreRelationsByEmbedding recomputes edge distances lazily when no
// relation collection is configured: distinct relation labels are
// embedded once and compared to the query vector by cosine distance.
// Failure leaves edge distances unknown and degrades ranking to node
// distances only.
func (r *CandidateRetriever) scoreRelationsByEmbedding(ctx context.Context, g *graph.WorkingGraph, queryVector []float32) {
	labels := make([]string, 0)
	seen := make(map[string]bool)

	for _, e := range g.Edges() {
		if e.Relation == "" || seen[e.Relation] {
			continue
		}

		seen[e.Relation] = true
		labels = append(labels, e.Relation)
	}

	if len(labels) == 0 {
		return
	}

	vectors, err := r.vectors.Embed(ctx, labels)
	if err != nil || len(vectors) != len(labels) {
		r.log.WithError(err).Warn("relation embedding failed, edge distances left unknown")
		return
	}

	distances := make(map[string]float64, len(labels))
	for i, label := range labels {
		distances[label] = cosineDistance(queryVector, vectors[i])
	}

	for _, e := range g.Edges() {
		if d, ok := distances[e.Relation]; ok && d < e.Distance {
			e.Distance = d
		}
	}
}

// cosineDistance returns 1 - cosine similarity, matching the
// lower-is-better distance contract of the vector store.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return math.Inf(1)
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
