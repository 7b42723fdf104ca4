package fusion

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/graphweave/graphweave/internal/metrics"
)

// Channel is one independent retrieval strategy whose ranked output
// feeds the fusion.
type Channel interface {
	Name() string
	Retrieve(ctx context.Context, query string, limit int) ([]RankedResult, error)
}

// HybridRetriever composes the three standard channels (vector-only,
// graph-triplet, lexical) and fuses their outputs with weighted RRF.
// A single channel's failure is logged and contributes an empty list;
// it never fails the whole fusion.
type HybridRetriever struct {
	channels []Channel
	weights  []float64
	log      *logrus.Logger
}

// NewHybridRetriever creates a HybridRetriever over the three channels.
// weights may be nil for equal weighting.
func NewHybridRetriever(vector, triplet, lexical Channel, weights []float64, log *logrus.Logger) *HybridRetriever {
	if log == nil {
		log = logrus.New()
	}

	return &HybridRetriever{
		channels: []Channel{vector, triplet, lexical},
		weights:  weights,
		log:      log,
	}
}

// Retrieve runs all channels concurrently, joins them, and returns the
// fused ranking truncated to limit.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, limit int) ([]RankedResult, error) {
	results := make([][]RankedResult, len(h.channels))

	eg, gctx := errgroup.WithContext(ctx)

	for i, ch := range h.channels {
		if ch == nil {
			continue
		}

		eg.Go(func() error {
			ranked, err := ch.Retrieve(gctx, query, limit)
			if err != nil {
				h.log.WithError(err).WithField("channel", ch.Name()).Warn("fusion channel failed, contributing empty result")
				metrics.ChannelFailures.WithLabelValues(ch.Name()).Inc()

				return nil
			}

			results[i] = ranked

			return nil
		})
	}

	_ = eg.Wait()

	fused := Fuse(results, h.weights)

	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	return fused, nil
}
