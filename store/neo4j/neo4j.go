// Package neo4j adapts a Neo4j knowledge graph to the graph.Source
// projection contract. Nodes carry an id and type property; node-set
// membership is modelled as a CONTAINS relationship from NodeSet nodes.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/graphweave/graphweave/graph"
)

// Store implements graph.Source over a Neo4j driver.
type Store struct {
	driver neo4j.Driver
	log    *logrus.Logger
}

// New connects to a Neo4j instance with basic auth.
func New(uri, username, password string, log *logrus.Logger) (*Store, error) {
	driver, err := neo4j.NewDriver(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	if log == nil {
		log = logrus.New()
	}

	return &Store{driver: driver, log: log}, nil
}

// Close releases the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

// GraphData returns the whole stored graph.
func (s *Store) GraphData(ctx context.Context) ([]graph.NodeData, []graph.EdgeData, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	nodes, err := s.collectNodes(session, `MATCH (n) RETURN n.id, n.type, properties(n)`, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching graph nodes: %w", err)
	}

	edges, err := s.collectEdges(session,
		`MATCH (a)-[r]->(b) RETURN a.id, b.id, type(r), properties(r)`, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching graph edges: %w", err)
	}

	return nodes, edges, nil
}

// FilteredGraphData returns the subgraph whose nodes match all the
// given property filters, plus the edges among them.
func (s *Store) FilteredGraphData(ctx context.Context, filters map[string]string) ([]graph.NodeData, []graph.EdgeData, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	params := map[string]interface{}{"filters": toAnyMap(filters)}

	nodes, err := s.collectNodes(session,
		`MATCH (n)
		WHERE all(k IN keys($filters) WHERE n[k] = $filters[k])
		RETURN n.id, n.type, properties(n)`, params)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching filtered nodes: %w", err)
	}

	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("no nodes match filters: %w", graph.ErrProjectionNotFound)
	}

	edges, err := s.collectEdges(session,
		`MATCH (a)-[r]->(b)
		WHERE all(k IN keys($filters) WHERE a[k] = $filters[k])
			AND all(k IN keys($filters) WHERE b[k] = $filters[k])
		RETURN a.id, b.id, type(r), properties(r)`, params)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching filtered edges: %w", err)
	}

	return nodes, edges, nil
}

// NodesetSubgraph returns the members of the named node sets with the
// given type, plus the edges among them.
func (s *Store) NodesetSubgraph(ctx context.Context, nodeType string, names []string) ([]graph.NodeData, []graph.EdgeData, error) {
	session := s.driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	params := map[string]interface{}{"names": names, "nodeType": nodeType}

	nodes, err := s.collectNodes(session,
		`MATCH (ns {type: 'NodeSet'})-[:CONTAINS]->(n {type: $nodeType})
		WHERE ns.name IN $names
		RETURN DISTINCT n.id, n.type, properties(n)`, params)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching nodeset members: %w", err)
	}

	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("nodesets %v with type %q: %w", names, nodeType, graph.ErrProjectionNotFound)
	}

	edges, err := s.collectEdges(session,
		`MATCH (ns {type: 'NodeSet'})-[:CONTAINS]->(a {type: $nodeType})
		MATCH (ns2 {type: 'NodeSet'})-[:CONTAINS]->(b {type: $nodeType})
		MATCH (a)-[r]->(b)
		WHERE ns.name IN $names AND ns2.name IN $names
		RETURN DISTINCT a.id, b.id, type(r), properties(r)`, params)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching nodeset edges: %w", err)
	}

	return nodes, edges, nil
}

func (s *Store) collectNodes(session neo4j.Session, query string, params map[string]interface{}) ([]graph.NodeData, error) {
	result, err := session.Run(query, params)
	if err != nil {
		return nil, err
	}

	nodes := make([]graph.NodeData, 0, 64)

	for result.Next() {
		values := result.Record().Values
		if len(values) < 3 {
			continue
		}

		id, _ := values[0].(string)
		if id == "" {
			s.log.Debug("skipping node without id property")
			continue
		}

		nodeType, _ := values[1].(string)
		attrs, _ := values[2].(map[string]interface{})

		nodes = append(nodes, graph.NodeData{ID: id, Type: nodeType, Attrs: attrs})
	}

	return nodes, result.Err()
}

func (s *Store) collectEdges(session neo4j.Session, query string, params map[string]interface{}) ([]graph.EdgeData, error) {
	result, err := session.Run(query, params)
	if err != nil {
		return nil, err
	}

	edges := make([]graph.EdgeData, 0, 64)

	for result.Next() {
		values := result.Record().Values
		if len(values) < 4 {
			continue
		}

		source, _ := values[0].(string)
		target, _ := values[1].(string)

		if source == "" || target == "" {
			continue
		}

		relation, _ := values[2].(string)
		attrs, _ := values[3].(map[string]interface{})

		edges = append(edges, graph.EdgeData{Source: source, Target: target, Relation: relation, Attrs: attrs})
	}

	return edges, result.Err()
}

func toAnyMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
