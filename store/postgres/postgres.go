// Package postgres adapts a PostgreSQL knowledge-graph schema to the
// graph.Source projection contract and provides the full-text lexical
// channel for hybrid fusion.
//
// The expected schema mirrors the extraction pipeline's output:
// kg_nodes(id, type, properties jsonb, label_tsv tsvector) and
// kg_edges(source, target, relation, properties jsonb).
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/graphweave/graphweave/fusion"
	"github.com/graphweave/graphweave/graph"
)

const defaultQueryTimeout = 30 * time.Second

// maxGraphNodeFetch caps nodes pulled into a single projection.
const maxGraphNodeFetch = 10000

// Store implements graph.Source and fusion.TextSearcher over a pgx
// connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}

	return &Store{pool: pool, log: log}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// GraphData returns the whole stored graph.
func (s *Store) GraphData(ctx context.Context) ([]graph.NodeData, []graph.EdgeData, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	nodes, err := s.queryNodes(ctx, `SELECT id, type, properties FROM kg_nodes LIMIT $1`, maxGraphNodeFetch)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching graph nodes: %w", err)
	}

	edges, err := s.queryEdges(ctx, `SELECT source, target, relation, properties FROM kg_edges`)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching graph edges: %w", err)
	}

	return nodes, edges, nil
}

// FilteredGraphData returns the subgraph whose nodes match all the
// given attribute filters. The "type" key filters the type column;
// other keys filter JSONB properties by equality.
func (s *Store) FilteredGraphData(ctx context.Context, filters map[string]string) ([]graph.NodeData, []graph.EdgeData, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sql := `SELECT id, type, properties FROM kg_nodes WHERE true`
	args := []any{}
	argIdx := 1

	for key, value := range filters {
		if key == "type" {
			sql += fmt.Sprintf(" AND type = $%d", argIdx)
			args = append(args, value)
			argIdx++

			continue
		}

		sql += fmt.Sprintf(" AND properties->>$%d = $%d", argIdx, argIdx+1)
		args = append(args, key, value)
		argIdx += 2
	}

	sql += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, maxGraphNodeFetch)

	nodes, err := s.queryNodes(ctx, sql, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching filtered nodes: %w", err)
	}

	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("no nodes match filters: %w", graph.ErrProjectionNotFound)
	}

	edges, err := s.edgesAmong(ctx, nodes)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

// NodesetSubgraph returns the members of the named node sets that have
// the given type, plus the edges among them. Membership is modelled as
// a contains edge from the NodeSet node.
func (s *Store) NodesetSubgraph(ctx context.Context, nodeType string, names []string) ([]graph.NodeData, []graph.EdgeData, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sql := `SELECT n.id, n.type, n.properties
		FROM kg_nodes n
		JOIN kg_edges m ON m.target = n.id AND m.relation = 'contains'
		JOIN kg_nodes ns ON ns.id = m.source AND ns.type = 'NodeSet'
		WHERE ns.properties->>'name' = ANY($1) AND n.type = $2
		LIMIT $3`

	nodes, err := s.queryNodes(ctx, sql, names, nodeType, maxGraphNodeFetch)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching nodeset members: %w", err)
	}

	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("nodesets %v with type %q: %w", names, nodeType, graph.ErrProjectionNotFound)
	}

	edges, err := s.edgesAmong(ctx, nodes)
	if err != nil {
		return nil, nil, err
	}

	return nodes, edges, nil
}

// SearchText implements fusion.TextSearcher using PostgreSQL full-text
// search ranked by ts_rank.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]fusion.RankedResult, error) {
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sql := `SELECT id, type, properties,
			ts_rank(label_tsv, plainto_tsquery('english', $1)) AS rank
		FROM kg_nodes
		WHERE label_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("executing full-text search: %w", err)
	}
	defer rows.Close()

	results := make([]fusion.RankedResult, 0, limit)

	for rows.Next() {
		var (
			id, nodeType string
			props        []byte
			rank         float64
		)

		if err := rows.Scan(&id, &nodeType, &props, &rank); err != nil {
			return nil, fmt.Errorf("scanning full-text hit: %w", err)
		}

		attrs, err := unmarshalProps(props)
		if err != nil {
			return nil, err
		}

		attrs["type"] = nodeType

		results = append(results, fusion.RankedResult{ID: id, Payload: attrs})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading full-text hits: %w", err)
	}

	return results, nil
}

// edgesAmong returns the edges whose both endpoints are in the node set.
func (s *Store) edgesAmong(ctx context.Context, nodes []graph.NodeData) ([]graph.EdgeData, error) {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	sql := `SELECT source, target, relation, properties
		FROM kg_edges
		WHERE source = ANY($1) AND target = ANY($1)`

	edges, err := s.queryEdges(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("fetching subgraph edges: %w", err)
	}

	return edges, nil
}

func (s *Store) queryNodes(ctx context.Context, sql string, args ...any) ([]graph.NodeData, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := make([]graph.NodeData, 0, 64)

	for rows.Next() {
		var (
			nd    graph.NodeData
			props []byte
		)

		if err := rows.Scan(&nd.ID, &nd.Type, &props); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}

		nd.Attrs, err = unmarshalProps(props)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, nd)
	}

	return nodes, rows.Err()
}

func (s *Store) queryEdges(ctx context.Context, sql string, args ...any) ([]graph.EdgeData, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := make([]graph.EdgeData, 0, 64)

	for rows.Next() {
		var (
			ed    graph.EdgeData
			props []byte
		)

		if err := rows.Scan(&ed.Source, &ed.Target, &ed.Relation, &props); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}

		ed.Attrs, err = unmarshalProps(props)
		if err != nil {
			return nil, err
		}

		edges = append(edges, ed)
	}

	return edges, rows.Err()
}

func unmarshalProps(props []byte) (map[string]any, error) {
	if len(props) == 0 {
		return map[string]any{}, nil
	}

	attrs := map[string]any{}
	if err := json.Unmarshal(props, &attrs); err != nil {
		return nil, fmt.Errorf("unmarshalling properties: %w", err)
	}

	return attrs, nil
}
