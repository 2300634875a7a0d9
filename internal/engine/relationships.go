package engine

import (
	"context"

	"github.com/hera-erp/hera/internal/model"
	"github.com/hera-erp/hera/internal/query"
	"github.com/hera-erp/hera/internal/store"
)

type relationshipInput struct {
	ID               string          `json:"id"`
	FromEntityID     string          `json:"from_entity_id"`
	ToEntityID       string          `json:"to_entity_id"`
	RelationshipType string          `json:"relationship_type"`
	SmartCode        string          `json:"smart_code"`
	RelationshipData *model.Metadata `json:"relationship_data"`
	IsExclusive      bool            `json:"is_exclusive"`
}

func (e *Engine) createRelationship(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in relationshipInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	if in.FromEntityID == "" {
		in.FromEntityID = c.parentID
	}
	r, err := e.insertRelationship(ctx, st, c, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: r}, nil
}

// insertRelationship validates and opens one edge. Shared by create,
// transition and create_complete.
func (e *Engine) insertRelationship(ctx context.Context, st *store.Store, c *call, in relationshipInput) (*model.Relationship, error) {
	if err := required("from_entity_id", in.FromEntityID); err != nil {
		return nil, err
	}
	if err := required("to_entity_id", in.ToEntityID); err != nil {
		return nil, err
	}
	if err := required("relationship_type", in.RelationshipType); err != nil {
		return nil, err
	}
	if err := st.EntitiesExist(ctx, c.org, in.FromEntityID, in.ToEntityID); err != nil {
		return nil, err
	}
	if err := e.checkEdge(ctx, st, c.org, in.FromEntityID, in.ToEntityID, in.RelationshipType); err != nil {
		return nil, err
	}
	smartCode := c.smartCode
	if in.SmartCode != "" {
		smartCode = in.SmartCode
	}
	if err := e.govern(ctx, st, c, "smart_code", smartCode, 0); err != nil {
		return nil, err
	}
	id := in.ID
	if id == "" {
		id = e.ids.Generate()
	}
	r := &model.Relationship{
		ID:               id,
		OrganizationID:   c.org,
		FromEntityID:     in.FromEntityID,
		ToEntityID:       in.ToEntityID,
		RelationshipType: in.RelationshipType,
		SmartCode:        smartCode,
		RelationshipData: pick(in.RelationshipData, nil),
		Status:           model.StatusActive,
		IsActive:         true,
		IsExclusive:      in.IsExclusive || e.catalog.RelationshipType(in.RelationshipType).Exclusive,
		StartedAt:        c.now,
		Audit:            model.Audit{CreatedBy: c.actor, CreatedAt: c.now, UpdatedBy: c.actor, UpdatedAt: c.now},
	}
	if err := st.InsertRelationship(ctx, r); err != nil {
		if model.IsConflict(err) && r.IsExclusive {
			return nil, model.Conflict("relationship_type",
				"entity %s already has an active %s relationship; use transition to replace it", r.FromEntityID, r.RelationshipType).
				WithDetail("relationship_type", r.RelationshipType)
		}
		return nil, err
	}
	return r, nil
}

// transitionRelationship closes the active edge of an exclusive slot and
// opens a new one to the requested target. Repeating a transition to the
// current target changes nothing.
func (e *Engine) transitionRelationship(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in relationshipInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	if in.FromEntityID == "" {
		in.FromEntityID = c.parentID
	}
	if err := required("from_entity_id", in.FromEntityID); err != nil {
		return outcome{}, err
	}
	if err := required("relationship_type", in.RelationshipType); err != nil {
		return outcome{}, err
	}
	cur, err := st.ActiveInSlot(ctx, c.org, in.FromEntityID, in.RelationshipType)
	if err != nil {
		return outcome{}, err
	}
	if cur != nil && cur.ToEntityID == in.ToEntityID {
		return outcome{data: cur}, nil
	}
	if cur != nil {
		if err := st.CloseRelationship(ctx, c.org, cur.ID, c.actor, c.now, false); err != nil {
			return outcome{}, err
		}
	}
	in.IsExclusive = true
	r, err := e.insertRelationship(ctx, st, c, in)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: r}, nil
}

func (e *Engine) readRelationship(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "relationship")
	if err != nil {
		return outcome{}, err
	}
	r, err := st.GetRelationship(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: r}, nil
}

// updateRelationship rewrites the payload of an edge. Endpoints and type
// are fixed; a different edge is a new relationship.
func (e *Engine) updateRelationship(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in relationshipInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	id, err := idFrom(c, "relationship")
	if err != nil {
		return outcome{}, err
	}
	r, err := st.GetRelationship(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	if err := immutableCode(c.payload, r.SmartCode); err != nil {
		return outcome{}, err
	}
	if (in.FromEntityID != "" && in.FromEntityID != r.FromEntityID) ||
		(in.ToEntityID != "" && in.ToEntityID != r.ToEntityID) ||
		(in.RelationshipType != "" && in.RelationshipType != r.RelationshipType) {
		return outcome{}, model.Validation("relationship", "endpoints and type of a relationship cannot change")
	}
	r.RelationshipData = pick(in.RelationshipData, r.RelationshipData)
	r.UpdatedBy = c.actor
	r.UpdatedAt = c.now
	if err := st.UpdateRelationshipData(ctx, r); err != nil {
		return outcome{}, err
	}
	return outcome{data: r}, nil
}

// archiveRelationship closes an edge and archives it. Relationships keep
// their history, so delete behaves the same way.
func (e *Engine) archiveRelationship(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	id, err := idFrom(c, "relationship")
	if err != nil {
		return outcome{}, err
	}
	if err := st.CloseRelationship(ctx, c.org, id, c.actor, c.now, true); err != nil {
		return outcome{}, err
	}
	r, err := st.GetRelationship(ctx, c.org, id)
	if err != nil {
		return outcome{}, err
	}
	return outcome{data: r}, nil
}

// queryRelationships lists edges. parent_id narrows to edges leaving that
// entity; filters cover to_entity_id, relationship_type, is_active and the
// other columns.
func (e *Engine) queryRelationships(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var extra []query.Predicate
	if c.parentID != "" {
		extra = append(extra, query.Eq("from_entity_id", c.parentID))
	}
	sel, err := buildSelect(c, query.TableRelationships, extra...)
	if err != nil {
		return outcome{}, err
	}
	rows, err := st.QueryRelationships(ctx, sel)
	if err != nil {
		return outcome{}, err
	}
	return rowsOutcome(ctx, st, c, sel, rows)
}

type hierarchyInput struct {
	RelationshipType string          `json:"relationship_type"`
	Direction        store.Direction `json:"direction"`
	MaxDepth         int             `json:"max_depth"`
}

// hierarchy walks from the root entity (id) along one relationship type.
func (e *Engine) hierarchy(ctx context.Context, st *store.Store, c *call) (outcome, error) {
	var in hierarchyInput
	if err := decode(c.payload, &in); err != nil {
		return outcome{}, err
	}
	root, err := idFrom(c, "root entity")
	if err != nil {
		return outcome{}, err
	}
	if err := required("relationship_type", in.RelationshipType); err != nil {
		return outcome{}, err
	}
	if in.Direction == "" {
		in.Direction = store.Outgoing
	}
	if in.Direction != store.Outgoing && in.Direction != store.Incoming {
		return outcome{}, model.Validation("direction", "direction must be outgoing or incoming")
	}
	depth := in.MaxDepth
	if depth <= 0 || depth > e.maxDepth {
		depth = e.maxDepth
	}
	if err := st.EntitiesExist(ctx, c.org, root); err != nil {
		return outcome{}, err
	}
	nodes, err := st.Hierarchy(ctx, c.org, root, in.RelationshipType, in.Direction, depth)
	if err != nil {
		return outcome{}, err
	}
	return outcome{rows: anyRows(nodes), meta: &Meta{Count: len(nodes)}}, nil
}
