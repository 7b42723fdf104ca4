package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// NodeData is a plain node record returned by a Source.
type NodeData struct {
	ID    string
	Type  string
	Attrs map[string]any
}

// EdgeData is a plain edge record returned by a Source.
type EdgeData struct {
	Source   string
	Target   string
	Relation string
	Attrs    map[string]any
}

// Source is the narrow contract onto the persistent graph store. An
// implementation returns ErrProjectionNotFound when the requested
// target does not exist.
type Source interface {
	GraphData(ctx context.Context) ([]NodeData, []EdgeData, error)
	FilteredGraphData(ctx context.Context, filters map[string]string) ([]NodeData, []EdgeData, error)
	NodesetSubgraph(ctx context.Context, nodeType string, names []string) ([]NodeData, []EdgeData, error)
}

// Projection selects what to pull from the store. The zero value
// projects the whole graph; Filters selects by attribute equality;
// NodesetNames (with NodesetType) selects members of named node sets.
type Projection struct {
	Filters      map[string]string
	NodesetType  string
	NodesetNames []string
}

func (p Projection) kind() string {
	switch {
	case len(p.NodesetNames) > 0:
		return "nodeset"
	case len(p.Filters) > 0:
		return "filtered"
	default:
		return "full"
	}
}

// Project populates the graph from the store. Filtered and nodeset
// projections that come back empty fail with ErrEmptyProjection; a
// whole-graph projection of an empty store is permitted and simply
// yields an empty graph.
func (g *WorkingGraph) Project(ctx context.Context, src Source, p Projection) error {
	start := time.Now()

	var (
		nodes []NodeData
		edges []EdgeData
		err   error
	)

	switch p.kind() {
	case "nodeset":
		nodes, edges, err = src.NodesetSubgraph(ctx, p.NodesetType, p.NodesetNames)
	case "filtered":
		nodes, edges, err = src.FilteredGraphData(ctx, p.Filters)
	default:
		nodes, edges, err = src.GraphData(ctx)
	}

	if err != nil {
		if errors.Is(err, ErrProjectionNotFound) {
			return fmt.Errorf("projecting %s graph: %w", p.kind(), ErrEmptyProjection)
		}

		return fmt.Errorf("projecting %s graph: %w", p.kind(), err)
	}

	if len(nodes) == 0 && p.kind() != "full" {
		return fmt.Errorf("projecting %s graph: %w", p.kind(), ErrEmptyProjection)
	}

	for _, nd := range nodes {
		if err := g.AddNode(NewNode(nd.ID, nd.Type, nd.Attrs)); err != nil {
			return fmt.Errorf("projecting %s graph: %w", p.kind(), err)
		}
	}

	skipped := 0

	for _, ed := range edges {
		src, serr := g.GetNode(ed.Source)
		tgt, terr := g.GetNode(ed.Target)

		if serr != nil || terr != nil {
			// A store may return boundary edges whose far endpoint
			// falls outside the projection; drop them.
			skipped++
			continue
		}

		if err := g.AddEdge(NewEdge(src, tgt, ed.Relation, ed.Attrs)); err != nil {
			return fmt.Errorf("projecting %s graph: %w", p.kind(), err)
		}
	}

	g.log.WithFields(logrus.Fields{
		"projection": p.kind(),
		"nodes":      g.NodeCount(),
		"edges":      g.EdgeCount(),
		"skipped":    skipped,
		"elapsed":    time.Since(start),
	}).Info("working graph projected")

	return nil
}
