package store

import (
	"context"
	"fmt"
	"strings"
)

// Direction selects which way a traversal follows edges.
type Direction string

const (
	// Outgoing follows from_entity_id -> to_entity_id.
	Outgoing Direction = "outgoing"
	// Incoming follows to_entity_id -> from_entity_id.
	Incoming Direction = "incoming"
)

// PathResult is the outcome of a bounded reachability search.
type PathResult struct {
	// Found is set when the target was reached.
	Found bool
	// Truncated is set when the depth budget ran out with nodes still
	// unexplored, so absence of a path is unproven.
	Truncated bool
	// Depth is the number of hops to the target when Found.
	Depth int
}

// Reachable searches breadth-first from start along active edges of relType
// for target. Each level is one query over the whole frontier; every node is
// expanded at most once, so the search terminates on any graph.
func (s *Store) Reachable(ctx context.Context, org, relType, start, target string, maxDepth int) (PathResult, error) {
	if start == target {
		return PathResult{Found: true}, nil
	}
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for depth := 1; depth <= maxDepth; depth++ {
		next, err := s.neighbours(ctx, org, relType, Outgoing, frontier)
		if err != nil {
			return PathResult{}, err
		}
		frontier = frontier[:0]
		for _, e := range next {
			if e.node == target {
				return PathResult{Found: true, Depth: depth}, nil
			}
			if !visited[e.node] {
				visited[e.node] = true
				frontier = append(frontier, e.node)
			}
		}
		if len(frontier) == 0 {
			return PathResult{}, nil
		}
	}
	return PathResult{Truncated: true}, nil
}

// HierarchyNode is one entity reached by a hierarchy traversal.
type HierarchyNode struct {
	EntityID       string `json:"entity_id"`
	ParentID       string `json:"parent_id"`
	RelationshipID string `json:"relationship_id"`
	Depth          int    `json:"depth"`
}

// Hierarchy walks active edges of relType from root in the given direction
// up to maxDepth hops. Each entity appears once, at its shallowest depth,
// in breadth-first order.
func (s *Store) Hierarchy(ctx context.Context, org, root, relType string, dir Direction, maxDepth int) ([]HierarchyNode, error) {
	nodes := []HierarchyNode{}
	visited := map[string]bool{root: true}
	frontier := []string{root}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		next, err := s.neighbours(ctx, org, relType, dir, frontier)
		if err != nil {
			return nil, err
		}
		frontier = nil
		for _, e := range next {
			if visited[e.node] {
				continue
			}
			visited[e.node] = true
			frontier = append(frontier, e.node)
			nodes = append(nodes, HierarchyNode{
				EntityID:       e.node,
				ParentID:       e.parent,
				RelationshipID: e.rel,
				Depth:          depth,
			})
		}
	}
	return nodes, nil
}

type edge struct {
	parent, node, rel string
}

// neighbours returns the edges leaving (or entering) every frontier node,
// in insertion order.
func (s *Store) neighbours(ctx context.Context, org, relType string, dir Direction, frontier []string) ([]edge, error) {
	src, dst := "from_entity_id", "to_entity_id"
	if dir == Incoming {
		src, dst = dst, src
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(frontier)), ", ")
	args := make([]any, 0, len(frontier)+2)
	args = append(args, org, relType)
	for _, id := range frontier {
		args = append(args, id)
	}
	sqlText := fmt.Sprintf(`
		SELECT %s, %s, id FROM relationships
		WHERE organization_id = ? AND relationship_type = ? AND is_active = 1 AND %s IN (%s)
		ORDER BY rowid ASC
	`, src, dst, src, marks)
	return collect(ctx, s.q, "traverse relationships", func(sc scanner) (edge, error) {
		var e edge
		err := sc.Scan(&e.parent, &e.node, &e.rel)
		return e, err
	}, sqlText, args...)
}
