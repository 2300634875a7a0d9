package engine

import (
	"context"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/store"
)

// checkEdge guards a proposed edge from -> to of relType.
//
// Self-loops are rejected unless the type is reflexive-safe. Otherwise the
// graph must stay acyclic: if from is reachable from to along active edges
// of the same type, adding the edge would close a loop.
//
// Example cycle:
//
//	A reports_to B   (existing)
//	B reports_to A   (proposed) -> B is reachable from A; rejected
//
// The walk is breadth-first with a visited set and a depth budget. When
// the budget runs out before the frontier is exhausted the edge is
// rejected as well; absence of a cycle was not proven.
func (e *Engine) checkEdge(ctx context.Context, st *store.Store, org, from, to, relType string) error {
	rule := e.catalog.RelationshipType(relType)
	if from == to {
		if rule.ReflexiveSafe {
			return nil
		}
		return model.Conflict("to_entity_id", "self-referencing %s relationship is not allowed", relType).
			WithDetail("relationship_type", relType)
	}
	if rule.ReflexiveSafe {
		return nil
	}
	res, err := st.Reachable(ctx, org, relType, to, from, e.maxDepth)
	if err != nil {
		return err
	}
	switch {
	case res.Found:
		return model.Conflict("to_entity_id", "relationship would create a %s cycle", relType).
			WithDetail("relationship_type", relType).
			WithDetail("path_length", res.Depth+1)
	case res.Truncated:
		return model.Conflict("to_entity_id", "cycle check exceeded max depth %d", e.maxDepth).
			WithDetail("relationship_type", relType).
			WithDetail("max_depth", e.maxDepth)
	}
	return nil
}
