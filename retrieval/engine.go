package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/graphweave/graphweave/graph"
	"github.com/graphweave/graphweave/internal/metrics"
)

// DefaultTopK is the number of triplets returned when none is configured.
const DefaultTopK = 10

// Options configures an Engine.
type Options struct {
	// TopK is the number of triplets to return; <= 0 selects DefaultTopK.
	TopK int

	// Collections are the node collections to search; nil selects
	// DefaultCollections.
	Collections []string

	// RelationCollection is the edge-relation collection; empty means
	// edge distances are recomputed from relation-label embeddings.
	RelationCollection string

	// Threshold is the relevance threshold policy; the zero value
	// selects DefaultThresholdPolicy.
	Threshold ThresholdPolicy

	// MinQuality is the quality floor; zero disables quality filtering.
	MinQuality float64

	// MaxPerType is the diversity cap; <= 0 selects DefaultMaxPerType.
	MaxPerType int

	// Projection selects the working-graph projection; the zero value
	// projects the whole graph.
	Projection graph.Projection
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}

	if o.Threshold == (ThresholdPolicy{}) {
		o.Threshold = DefaultThresholdPolicy()
	}

	if o.MaxPerType <= 0 {
		o.MaxPerType = DefaultMaxPerType
	}

	return o
}

// Engine runs the full triplet retrieval pipeline: projection,
// candidate retrieval, relevance ranking, quality filtering, diversity
// trimming, and optional reranking.
type Engine struct {
	source    graph.Source
	retriever *CandidateRetriever
	ranker    *Ranker
	scorer    *QualityScorer
	diversity *DiversityFilter
	reranker  Reranker
	opts      Options
	log       *logrus.Logger
}

// NewEngine creates an Engine. reranker may be nil to skip reranking.
func NewEngine(source graph.Source, vectors VectorStore, reranker Reranker, opts Options, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}

	opts = opts.withDefaults()
	scorer := &QualityScorer{}

	return &Engine{
		source:    source,
		retriever: NewCandidateRetriever(vectors, opts.Collections, opts.RelationCollection, log),
		ranker:    NewRanker(opts.Threshold, scorer, log),
		scorer:    scorer,
		diversity: NewDiversityFilter(opts.MaxPerType),
		reranker:  reranker,
		opts:      opts,
		log:       log,
	}
}

// Retrieve returns the ranked triplets for the query. Data-availability
// conditions (empty projection, no candidates, nothing above threshold)
// yield an empty slice and a log entry, never an error; only structural
// failures propagate.
func (e *Engine) Retrieve(ctx context.Context, query string) ([]Triplet, error) {
	start := time.Now()

	log := e.log.WithField("trace_id", uuid.NewString())

	defer func() {
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	}()

	g := graph.New(e.log)

	if err := g.Project(ctx, e.source, e.opts.Projection); err != nil {
		if errors.Is(err, graph.ErrEmptyProjection) {
			log.WithError(err).Warn("projection target empty, returning no triplets")
			metrics.EmptyResults.WithLabelValues("empty_projection").Inc()

			return nil, nil
		}

		return nil, fmt.Errorf("building working graph: %w", err)
	}

	found, err := e.retriever.Retrieve(ctx, g, query, e.opts.TopK)
	if err != nil {
		return nil, err
	}

	if !found {
		metrics.EmptyResults.WithLabelValues("no_candidates").Inc()

		return nil, nil
	}

	triplets := e.ranker.TopTriplets(g, query, e.opts.TopK)
	if len(triplets) == 0 {
		metrics.EmptyResults.WithLabelValues("below_threshold").Inc()

		return nil, nil
	}

	triplets = e.scorer.FilterLowQuality(triplets, query, e.opts.MinQuality)
	triplets = e.scorer.RankByQuality(triplets, query)
	triplets = e.diversity.Filter(triplets)

	triplets = e.rerank(ctx, log, query, triplets)

	metrics.TripletsReturned.Observe(float64(len(triplets)))
	log.WithFields(logrus.Fields{
		"triplets": len(triplets),
		"elapsed":  time.Since(start),
	}).Info("retrieval complete")

	return triplets, nil
}

// rerank re-scores the surviving triplets with the external
// cross-encoder. Any failure degrades to the pre-rerank ordering.
func (e *Engine) rerank(ctx context.Context, log *logrus.Entry, query string, triplets []Triplet) []Triplet {
	if e.reranker == nil || len(triplets) == 0 {
		return triplets
	}

	texts := make([]string, len(triplets))
	for i, t := range triplets {
		texts[i] = TripletText(t)
	}

	scores, err := e.reranker.Score(ctx, query, texts)
	if err != nil || len(scores) != len(triplets) {
		log.WithError(err).Warn("reranker failed, keeping pre-rerank ordering")
		metrics.DegradedStages.WithLabelValues("reranker").Inc()

		return triplets
	}

	type scored struct {
		triplet Triplet
		score   float64
	}

	pairs := make([]scored, len(triplets))
	for i, t := range triplets {
		pairs[i] = scored{triplet: t, score: scores[i]}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	reranked := make([]Triplet, len(pairs))
	for i, p := range pairs {
		reranked[i] = p.triplet
	}

	return reranked
}

// TripletText renders a triplet as the "subject relation object" text
// handed to the reranker.
func TripletText(t Triplet) string {
	subject := t.Edge.Source.Name()
	if subject == "" {
		subject = t.Edge.Source.ID
	}

	object := t.Edge.Target.Name()
	if object == "" {
		object = t.Edge.Target.ID
	}

	return subject + " " + t.Edge.Relation + " " + object
}
