// Package qdrant adapts a Qdrant instance to the retrieval.VectorStore
// contract. Scores are converted from Qdrant's higher-is-better cosine
// similarity to the engine's lower-is-better distance.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/graphweave/graphweave/retrieval"
)

// Embedder generates vector embeddings for texts. Qdrant does not embed
// on its own, so the store delegates to an injected provider.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store implements retrieval.VectorStore over a Qdrant client.
type Store struct {
	client   *qdrant.Client
	embedder Embedder
}

// New creates a Store.
func New(client *qdrant.Client, embedder Embedder) *Store {
	return &Store{client: client, embedder: embedder}
}

// Search queries one collection. A missing collection maps onto
// retrieval.ErrCollectionNotFound.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]retrieval.ScoredPoint, error) {
	lim := uint64(limit)

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		if isCollectionMissing(err) {
			return nil, fmt.Errorf("collection %q: %w", collection, retrieval.ErrCollectionNotFound)
		}

		return nil, fmt.Errorf("querying collection %q: %w", collection, err)
	}

	out := make([]retrieval.ScoredPoint, 0, len(points))

	for _, pt := range points {
		payload := convertPayload(pt.GetPayload())

		id := pointID(pt.GetId())
		if nodeID, ok := payload["node_id"].(string); ok && nodeID != "" {
			id = nodeID
		}

		out = append(out, retrieval.ScoredPoint{
			ID:      id,
			Score:   1 - float64(pt.GetScore()),
			Payload: payload,
		})
	}

	return out, nil
}

// Embed implements retrieval.VectorStore by delegating to the injected
// embedder.
func (s *Store) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return s.embedder.Embed(ctx, texts)
}

// isCollectionMissing recognizes Qdrant's missing-collection error,
// which surfaces as a gRPC NotFound.
func isCollectionMissing(err error) bool {
	if status.Code(err) == codes.NotFound {
		return true
	}

	return strings.Contains(err.Error(), "doesn't exist")
}

func pointID(id *qdrant.PointId) string {
	switch {
	case id == nil:
		return ""
	case id.GetUuid() != "":
		return id.GetUuid()
	default:
		return strconv.FormatUint(id.GetNum(), 10)
	}
}

func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return map[string]any{}
	}

	out := make(map[string]any, len(payload))

	for key, value := range payload {
		switch v := value.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[key] = v.StringValue
		case *qdrant.Value_DoubleValue:
			out[key] = v.DoubleValue
		case *qdrant.Value_IntegerValue:
			out[key] = v.IntegerValue
		case *qdrant.Value_BoolValue:
			out[key] = v.BoolValue
		}
	}

	return out
}
