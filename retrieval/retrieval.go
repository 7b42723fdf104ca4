// Package retrieval implements the triplet retrieval and ranking
// pipeline: per-collection similarity fan-out, relevance-threshold
// top-k selection, quality scoring, diversity filtering, and optional
// cross-encoder reranking over a projected working graph.
package retrieval

import (
	"context"
	"errors"

	"github.com/graphweave/graphweave/graph"
)

// ScoredPoint is a single similarity-search hit. Score is a distance:
// lower is more relevant.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// VectorStore is the narrow contract onto the vector database.
// Implementations translate their backend's missing-collection error
// onto ErrCollectionNotFound.
type VectorStore interface {
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrCollectionNotFound is returned by VectorStore implementations for
// collections that do not exist. The retriever swallows it and treats
// the collection as empty.
var ErrCollectionNotFound = errors.New("collection not found")

// Reranker scores candidate texts against a query with an external
// cross-encoder model. Its failure must never abort retrieval.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Triplet is one (source, relation, target) result unit. Score is the
// aggregate vector distance (lower is better); Quality is the 0-1
// composite quality score set during the scoring pass.
type Triplet struct {
	Edge    *graph.Edge
	Score   float64
	Quality float64
}
