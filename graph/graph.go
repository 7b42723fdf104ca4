// Package graph provides the in-memory working graph used for a single
// retrieval call: a subgraph projected from the persistent knowledge
// graph onto which similarity distances are merged before ranking.
//
// A WorkingGraph is built once per query, mutated only by sequential
// scoring passes, and discarded when the call completes. It is not safe
// for concurrent mutation.
package graph

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Kind classifies a node at projection time. Scoring code branches on
// Kind instead of comparing raw type strings.
type Kind int

const (
	// KindOther covers node types with no special handling.
	KindOther Kind = iota
	// KindEntity is an extracted entity.
	KindEntity
	// KindChunk is a document chunk.
	KindChunk
	// KindNodeSet is a housekeeping/grouping node, always excluded
	// from relevance ranking.
	KindNodeSet
)

// String returns the canonical type tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "Entity"
	case KindChunk:
		return "DocumentChunk"
	case KindNodeSet:
		return "NodeSet"
	default:
		return "Other"
	}
}

// KindOf maps a stored node type tag to its Kind.
func KindOf(nodeType string) Kind {
	switch nodeType {
	case "Entity":
		return KindEntity
	case "DocumentChunk":
		return KindChunk
	case "NodeSet":
		return KindNodeSet
	default:
		return KindOther
	}
}

// Node is a vertex of the working graph. Distance is the vector
// distance written by candidate retrieval; +Inf means no similarity
// result matched this node.
type Node struct {
	ID    string
	Type  string
	Kind  Kind
	Attrs map[string]any

	Distance float64

	// edges indexes incident edges for adjacency traversal. It does
	// not own the edges; the graph's edge list does.
	edges []*Edge
}

// NewNode creates a node with an unknown distance. The Kind is derived
// from nodeType.
func NewNode(id, nodeType string, attrs map[string]any) *Node {
	if attrs == nil {
		attrs = map[string]any{}
	}

	return &Node{
		ID:       id,
		Type:     nodeType,
		Kind:     KindOf(nodeType),
		Attrs:    attrs,
		Distance: math.Inf(1),
	}
}

// Edges returns the node's incident edges.
func (n *Node) Edges() []*Edge { return n.edges }

// Degree returns the number of incident edges.
func (n *Node) Degree() int { return len(n.edges) }

// StringAttr returns a string attribute, or "" when absent or not a string.
func (n *Node) StringAttr(key string) string {
	v, ok := n.Attrs[key].(string)
	if !ok {
		return ""
	}

	return v
}

// Name returns the node's name attribute.
func (n *Node) Name() string { return n.StringAttr("name") }

// Description returns the node's description attribute.
func (n *Node) Description() string { return n.StringAttr("description") }

// Text returns the node's text attribute.
func (n *Node) Text() string { return n.StringAttr("text") }

// QualityScore returns the pre-computed quality_score attribute written
// during graph construction, and whether one is present.
func (n *Node) QualityScore() (float64, bool) {
	switch v := n.Attrs["quality_score"].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Edge is a directed relationship between two nodes already present in
// the graph. Distance is the vector distance of the relation label
// against the query; +Inf means unknown.
type Edge struct {
	Source   *Node
	Target   *Node
	Relation string
	Attrs    map[string]any

	Distance float64
}

// NewEdge creates an edge with an unknown distance.
func NewEdge(source, target *Node, relation string, attrs map[string]any) *Edge {
	if attrs == nil {
		attrs = map[string]any{}
	}

	return &Edge{
		Source:   source,
		Target:   target,
		Relation: relation,
		Attrs:    attrs,
		Distance: math.Inf(1),
	}
}

// WorkingGraph owns the node map and edge list for one retrieval call.
// Every edge's endpoints must exist in the node map before insertion.
type WorkingGraph struct {
	directed bool
	nodes    map[string]*Node
	edges    []*Edge
	log      *logrus.Logger
}

// New creates an empty directed working graph.
func New(log *logrus.Logger) *WorkingGraph {
	if log == nil {
		log = logrus.New()
	}

	return &WorkingGraph{
		directed: true,
		nodes:    make(map[string]*Node),
		log:      log,
	}
}

// AddNode inserts a node. The node id must be unique within the graph.
func (g *WorkingGraph) AddNode(n *Node) error {
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("adding node %q: %w", n.ID, ErrDuplicateNode)
	}

	g.nodes[n.ID] = n

	return nil
}

// AddEdge inserts an edge. Both endpoints must already be present; on
// success the edge is appended to both endpoints' incident-edge lists.
func (g *WorkingGraph) AddEdge(e *Edge) error {
	if e.Source == nil || e.Target == nil {
		return fmt.Errorf("adding edge %q: %w", e.Relation, ErrMissingEndpoint)
	}

	src, ok := g.nodes[e.Source.ID]
	if !ok || src != e.Source {
		return fmt.Errorf("adding edge %q: source %q: %w", e.Relation, e.Source.ID, ErrMissingEndpoint)
	}

	tgt, ok := g.nodes[e.Target.ID]
	if !ok || tgt != e.Target {
		return fmt.Errorf("adding edge %q: target %q: %w", e.Relation, e.Target.ID, ErrMissingEndpoint)
	}

	g.edges = append(g.edges, e)
	e.Source.edges = append(e.Source.edges, e)
	e.Target.edges = append(e.Target.edges, e)

	return nil
}

// GetNode returns the node with the given id.
func (g *WorkingGraph) GetNode(id string) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %q: %w", id, ErrNodeNotFound)
	}

	return n, nil
}

// Edges returns the graph's edge list.
func (g *WorkingGraph) Edges() []*Edge { return g.edges }

// NodeCount returns the number of nodes.
func (g *WorkingGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *WorkingGraph) EdgeCount() int { return len(g.edges) }
