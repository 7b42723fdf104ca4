package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

// mockSource records calls and returns configured responses.
type mockSource struct {
	calls []string

	graphData         func(ctx context.Context) ([]NodeData, []EdgeData, error)
	filteredGraphData func(ctx context.Context, filters map[string]string) ([]NodeData, []EdgeData, error)
	nodesetSubgraph   func(ctx context.Context, nodeType string, names []string) ([]NodeData, []EdgeData, error)
}

func (m *mockSource) GraphData(ctx context.Context) ([]NodeData, []EdgeData, error) {
	m.calls = append(m.calls, "GraphData")
	return m.graphData(ctx)
}

func (m *mockSource) FilteredGraphData(ctx context.Context, filters map[string]string) ([]NodeData, []EdgeData, error) {
	m.calls = append(m.calls, "FilteredGraphData")
	return m.filteredGraphData(ctx, filters)
}

func (m *mockSource) NodesetSubgraph(ctx context.Context, nodeType string, names []string) ([]NodeData, []EdgeData, error) {
	m.calls = append(m.calls, "NodesetSubgraph")
	return m.nodesetSubgraph(ctx, nodeType, names)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func sampleData() ([]NodeData, []EdgeData) {
	nodes := []NodeData{
		{ID: "a", Type: "Entity", Attrs: map[string]any{"name": "Ada"}},
		{ID: "b", Type: "Entity", Attrs: map[string]any{"name": "ACME"}},
		{ID: "c", Type: "DocumentChunk", Attrs: map[string]any{"text": "Ada works for ACME"}},
	}
	edges := []EdgeData{
		{Source: "a", Target: "b", Relation: "works_for"},
		{Source: "b", Target: "c", Relation: "mentioned_in"},
	}

	return nodes, edges
}

func TestProject_FullGraph(t *testing.T) {
	nodes, edges := sampleData()
	src := &mockSource{
		graphData: func(context.Context) ([]NodeData, []EdgeData, error) {
			return nodes, edges, nil
		},
	}

	g := New(quietLogger())
	if err := g.Project(context.Background(), src, Projection{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.NodeCount() != 3 || g.EdgeCount() != 2 {
		t.Errorf("graph size = %d nodes, %d edges, want 3/2", g.NodeCount(), g.EdgeCount())
	}

	n, err := g.GetNode("c")
	if err != nil {
		t.Fatal(err)
	}
	if n.Kind != KindChunk {
		t.Errorf("node c kind = %v, want KindChunk", n.Kind)
	}

	if len(src.calls) != 1 || src.calls[0] != "GraphData" {
		t.Errorf("expected one GraphData call, got %v", src.calls)
	}
}

func TestProject_Filtered(t *testing.T) {
	nodes, edges := sampleData()

	tests := []struct {
		name    string
		nodes   []NodeData
		edges   []EdgeData
		err     error
		wantErr error
	}{
		{name: "match", nodes: nodes, edges: edges},
		{name: "empty result", wantErr: ErrEmptyProjection},
		{name: "store not found", err: ErrProjectionNotFound, wantErr: ErrEmptyProjection},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &mockSource{
				filteredGraphData: func(_ context.Context, filters map[string]string) ([]NodeData, []EdgeData, error) {
					if filters["type"] != "Entity" {
						t.Errorf("filters = %v, want type=Entity", filters)
					}
					return tc.nodes, tc.edges, tc.err
				},
			}

			g := New(quietLogger())
			err := g.Project(context.Background(), src, Projection{Filters: map[string]string{"type": "Entity"}})

			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestProject_Nodeset(t *testing.T) {
	nodes, edges := sampleData()
	src := &mockSource{
		nodesetSubgraph: func(_ context.Context, nodeType string, names []string) ([]NodeData, []EdgeData, error) {
			if nodeType != "Entity" || len(names) != 1 || names[0] != "people" {
				t.Errorf("nodeset args = %q %v", nodeType, names)
			}
			return nodes, edges, nil
		},
	}

	g := New(quietLogger())
	err := g.Project(context.Background(), src, Projection{NodesetType: "Entity", NodesetNames: []string{"people"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(src.calls) != 1 || src.calls[0] != "NodesetSubgraph" {
		t.Errorf("expected one NodesetSubgraph call, got %v", src.calls)
	}
}

func TestProject_SkipsBoundaryEdges(t *testing.T) {
	nodes, _ := sampleData()
	src := &mockSource{
		graphData: func(context.Context) ([]NodeData, []EdgeData, error) {
			return nodes, []EdgeData{
				{Source: "a", Target: "b", Relation: "works_for"},
				{Source: "b", Target: "outside", Relation: "located_in"},
			}, nil
		},
	}

	g := New(quietLogger())
	if err := g.Project(context.Background(), src, Projection{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.EdgeCount() != 1 {
		t.Errorf("edge count = %d, want 1 (boundary edge dropped)", g.EdgeCount())
	}
}

func TestProject_EmptyFullGraphAllowed(t *testing.T) {
	src := &mockSource{
		graphData: func(context.Context) ([]NodeData, []EdgeData, error) {
			return nil, nil, nil
		},
	}

	g := New(quietLogger())
	if err := g.Project(context.Background(), src, Projection{}); err != nil {
		t.Fatalf("whole-graph projection of empty store should succeed, got %v", err)
	}
}
