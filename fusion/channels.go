package fusion

import (
	"context"
	"fmt"

	"github.com/graphweave/graphweave/retrieval"
)

// VectorChannel retrieves directly from one vector collection, skipping
// the graph entirely.
type VectorChannel struct {
	vectors    retrieval.VectorStore
	collection string
}

// NewVectorChannel creates a vector-only channel over the given
// collection (typically the chunk collection).
func NewVectorChannel(vectors retrieval.VectorStore, collection string) *VectorChannel {
	return &VectorChannel{vectors: vectors, collection: collection}
}

// Name implements Channel.
func (c *VectorChannel) Name() string { return "vector" }

// Retrieve embeds the query and returns the collection's hits in
// distance order.
func (c *VectorChannel) Retrieve(ctx context.Context, query string, limit int) ([]RankedResult, error) {
	vectors, err := c.vectors.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query: empty embedding response")
	}

	points, err := c.vectors.Search(ctx, c.collection, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", c.collection, err)
	}

	out := make([]RankedResult, len(points))
	for i, pt := range points {
		out[i] = RankedResult{ID: pt.ID, Payload: pt.Payload}
	}

	return out, nil
}

// TripletChannel runs the full graph-triplet pipeline as one fusion
// channel.
type TripletChannel struct {
	engine *retrieval.Engine
}

// NewTripletChannel wraps a retrieval engine as a channel.
func NewTripletChannel(engine *retrieval.Engine) *TripletChannel {
	return &TripletChannel{engine: engine}
}

// Name implements Channel.
func (c *TripletChannel) Name() string { return "graph" }

// Retrieve runs the triplet pipeline; each triplet becomes one result
// keyed by its (source, relation, target) identity.
func (c *TripletChannel) Retrieve(ctx context.Context, query string, limit int) ([]RankedResult, error) {
	triplets, err := c.engine.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(triplets) > limit {
		triplets = triplets[:limit]
	}

	out := make([]RankedResult, len(triplets))
	for i, t := range triplets {
		id := t.Edge.Source.ID + "|" + t.Edge.Relation + "|" + t.Edge.Target.ID
		out[i] = RankedResult{ID: id, Payload: t}
	}

	return out, nil
}

// TextSearcher is the lexical-search contract the lexical channel
// consumes (backed by e.g. PostgreSQL full-text search).
type TextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]RankedResult, error)
}

// LexicalChannel retrieves by keyword search.
type LexicalChannel struct {
	searcher TextSearcher
}

// NewLexicalChannel wraps a text searcher as a channel.
func NewLexicalChannel(searcher TextSearcher) *LexicalChannel {
	return &LexicalChannel{searcher: searcher}
}

// Name implements Channel.
func (c *LexicalChannel) Name() string { return "lexical" }

// Retrieve implements Channel.
func (c *LexicalChannel) Retrieve(ctx context.Context, query string, limit int) ([]RankedResult, error) {
	return c.searcher.SearchText(ctx, query, limit)
}
